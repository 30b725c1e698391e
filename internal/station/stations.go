// Package station は駅IDと駅名の静的な対応表を提供する。
// 上流APIは駅を数値IDで扱うため、通知メッセージの組み立て時に英語名へ変換する。
package station

// Station は駅1件のIDと英語名を表す。
type Station struct {
	ID   int
	Name string
}

// UnknownName は対応表に存在しないIDに対して返す駅名。
const UnknownName = "Unknown Station"

var stations = []Station{
	{ID: 1300, Name: "Nahariya"},
	{ID: 1400, Name: "Akko"},
	{ID: 1500, Name: "Kiryat Motzkin"},
	{ID: 2100, Name: "Haifa Center - HaShmona"},
	{ID: 2200, Name: "Haifa - Bat Galim"},
	{ID: 2300, Name: "Haifa - Hof HaCarmel"},
	{ID: 2500, Name: "Atlit"},
	{ID: 2800, Name: "Binyamina"},
	{ID: 2820, Name: "Caesarea - Pardes Hana"},
	{ID: 3100, Name: "Netanya"},
	{ID: 3300, Name: "Bet Yehoshua"},
	{ID: 3400, Name: "Herzliya"},
	{ID: 3500, Name: "Tel Aviv - University"},
	{ID: 3600, Name: "Tel Aviv - Savidor Center"},
	{ID: 3700, Name: "Tel Aviv - HaShalom"},
	{ID: 4100, Name: "Kfar Sava - Nordau"},
	{ID: 4250, Name: "Rosh HaAyin North"},
	{ID: 4600, Name: "Tel Aviv - HaHagana"},
	{ID: 4800, Name: "Kfar Habad"},
	{ID: 4900, Name: "Ben Gurion Airport"},
	{ID: 5000, Name: "Lod"},
	{ID: 5200, Name: "Ramla"},
	{ID: 5300, Name: "Beer Yaakov"},
	{ID: 5410, Name: "Yavne East"},
	{ID: 5800, Name: "Ashdod - Ad Halom"},
	{ID: 5900, Name: "Ashkelon"},
	{ID: 6300, Name: "Beer Sheva - North"},
	{ID: 6700, Name: "Beer Sheva - Center"},
	{ID: 7000, Name: "Kiryat Gat"},
	{ID: 7300, Name: "Rehovot"},
	{ID: 7320, Name: "Rishon LeTsiyon - HaRishonim"},
	{ID: 8550, Name: "Modiin - Pa'atei Modiin"},
	{ID: 8600, Name: "Modiin Center"},
	{ID: 680, Name: "Jerusalem - Yitzhak Navon"},
}

var byID = func() map[int]string {
	m := make(map[int]string, len(stations))
	for _, s := range stations {
		m[s.ID] = s.Name
	}
	return m
}()

// Name は駅IDの英語名を返す。未知のIDはUnknownNameを返す。
func Name(id int) string {
	if name, ok := byID[id]; ok {
		return name
	}
	return UnknownName
}

// All は全駅の一覧をID昇順とは限らない定義順で返す。
func All() []Station {
	out := make([]Station, len(stations))
	copy(out, stations)
	return out
}
