package station

import "testing"

func TestName_KnownStation(t *testing.T) {
	tests := []struct {
		id   int
		want string
	}{
		{3600, "Tel Aviv - Savidor Center"},
		{680, "Jerusalem - Yitzhak Navon"},
	}

	for _, tt := range tests {
		if got := Name(tt.id); got != tt.want {
			t.Errorf("Name(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestName_UnknownStation(t *testing.T) {
	if got := Name(99999); got != UnknownName {
		t.Errorf("Name(99999) = %q, want %q", got, UnknownName)
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	a := All()
	if len(a) == 0 {
		t.Fatal("All() は空であってはならない")
	}

	// 返されたスライスを書き換えても内部状態に影響しないこと
	id := a[0].ID
	a[0].Name = "mutated"
	if Name(id) == "mutated" {
		t.Error("All() は内部スライスのコピーを返すべき")
	}
}
