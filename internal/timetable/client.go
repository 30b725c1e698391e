// Package timetable は上流鉄道APIの時刻表クライアントを提供する。
// 日単位の時刻表取得、特定列車の遅延照会、および両者が共有する
// TTL付きリードスルーキャッシュを含む。
package timetable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/station"
)

const (
	// probeHourListing は日単位の時刻表取得に使用する固定照会時刻。
	// 上流APIが全日リストの取得にも時刻パラメータを要求するための実装上の産物で、
	// 実際の列車時刻とは無関係。
	probeHourListing = "16:30"
	// probeHourDelay は遅延照会に使用する固定照会時刻。
	probeHourDelay = "07:00"
)

// errMissingKeys は上流レスポンスに必須のトップレベルキーが欠けていることを表す。
var errMissingKeys = errors.New("response is missing 'result' or 'travels' keys")

// Entry は時刻表の旅程1件を表す。
type Entry struct {
	ScheduledDeparture string `json:"scheduled_departure"`
	ScheduledArrival   string `json:"scheduled_arrival"`
	Switches           int    `json:"switches"` // 乗り換え回数（列車本数 - 1）
}

// TrainTimes は特定列車の遅延照会結果を表す。
type TrainTimes struct {
	ScheduledDeparture string
	ScheduledArrival   string
	DelayMinutes       int
	SwitchStations     []string // 乗り換え駅名。直通の場合はnil
}

// UpdatedDeparture は遅延を加味した実際の出発時刻を返す。
func (t *TrainTimes) UpdatedDeparture() (time.Time, error) {
	dep, err := ParseAPITime(t.ScheduledDeparture)
	if err != nil {
		return time.Time{}, err
	}
	return dep.Add(time.Duration(t.DelayMinutes) * time.Minute), nil
}

// UpdatedArrival は遅延を加味した実際の到着時刻を返す。
func (t *TrainTimes) UpdatedArrival() (time.Time, error) {
	arr, err := ParseAPITime(t.ScheduledArrival)
	if err != nil {
		return time.Time{}, err
	}
	return arr.Add(time.Duration(t.DelayMinutes) * time.Minute), nil
}

// --- 上流レスポンスの構造 ---

type timetableResponse struct {
	Result *timetableResult `json:"result"`
}

type timetableResult struct {
	Travels []travel `json:"travels"`
}

type travel struct {
	DepartureTime string  `json:"departureTime"`
	ArrivalTime   string  `json:"arrivalTime"`
	Trains        []train `json:"trains"`
}

type train struct {
	DestinationStation int            `json:"destinationStation"`
	TrainPosition      *trainPosition `json:"trainPosition"`
}

type trainPosition struct {
	CalcDiffMinutes int `json:"calcDiffMinutes"`
}

// UpstreamMetrics は上流API呼び出しのメトリクスを記録するインターフェース。
type UpstreamMetrics interface {
	RecordUpstreamRequest()
	RecordUpstreamError()
	RecordTrainNotFound()
}

// Client は上流鉄道APIの時刻表クライアント。
// 日単位の時刻表フェッチ（高コストな呼び出し）は(出発駅, 到着駅, 日付, 照会時刻)
// ごとにTTL付きでメモ化され、同一経路を共有する購読の評価が上流呼び出し1回に
// 集約される。TTLの間は上流の更新が見えないが、これは意図したスループットと
// 鮮度のトレードオフ。
type Client struct {
	httpClient *http.Client
	cache      *Cache
	limiter    *rate.Limiter
	baseURL    string
	apiKey     string
	logger     *slog.Logger
	metrics    UpstreamMetrics

	now func() time.Time
}

// NewClient はClientを生成する。limiterとmetricsはnilでもよい。
func NewClient(httpClient *http.Client, cache *Cache, baseURL, apiKey string, limiter *rate.Limiter, metrics UpstreamMetrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		cache:      cache,
		limiter:    limiter,
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// GetTrainTimes は指定駅間・指定曜日の時刻表を出発時刻順で返す。
// 対象日は今日以降（今日を含む）で指定曜日が次に現れる日付。
// レスポンスが不正な場合はUpstreamErrorを返すが、必須フィールドを欠く
// 個別の旅程エントリは警告ログとともにスキップして処理を継続する。
func (c *Client) GetTrainTimes(ctx context.Context, origin, destination, dayOfWeek int) ([]Entry, error) {
	day := FormatAPIDate(NextWeekday(c.now(), dayOfWeek))

	payload, err := c.fetchTimetable(ctx, origin, destination, day, probeHourListing)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(payload.Result.Travels))
	for _, tr := range payload.Result.Travels {
		if tr.DepartureTime == "" || tr.ArrivalTime == "" || len(tr.Trains) == 0 {
			c.logger.Warn("必須フィールドを欠く旅程エントリをスキップします",
				slog.Int("origin", origin),
				slog.Int("destination", destination),
				slog.String("departure_time", tr.DepartureTime),
			)
			continue
		}
		entries = append(entries, Entry{
			ScheduledDeparture: tr.DepartureTime,
			ScheduledArrival:   tr.ArrivalTime,
			Switches:           len(tr.Trains) - 1,
		})
	}

	c.logger.Info("時刻表を取得しました",
		slog.Int("origin", origin),
		slog.Int("destination", destination),
		slog.String("date", day),
		slog.Int("entry_count", len(entries)),
	)

	return entries, nil
}

// GetDelay は指定出発時刻の列車の遅延情報を返す。
// 出発時刻の日付部分の時刻表を取得し、scheduled_departureが完全一致する
// エントリを検索する（許容誤差なしの文字列一致）。一致するエントリが
// 存在しない場合はTrainNotFoundErrorを返す。一致しても走行位置情報を
// 持たない場合は遅延0（定刻運行とみなす）。
func (c *Client) GetDelay(ctx context.Context, origin, destination int, departure string) (*TrainTimes, error) {
	dep, err := ParseAPITime(departure)
	if err != nil {
		return nil, model.NewUpstreamError("departure_time", err)
	}
	day := FormatAPIDate(dep)

	payload, err := c.fetchTimetable(ctx, origin, destination, day, probeHourDelay)
	if err != nil {
		return nil, err
	}

	for _, tr := range payload.Result.Travels {
		if tr.DepartureTime != departure {
			continue
		}

		if len(tr.Trains) == 0 {
			return nil, model.NewUpstreamError("delay", fmt.Errorf("travel at %s has no train data", departure))
		}

		times := &TrainTimes{
			ScheduledDeparture: tr.DepartureTime,
			ScheduledArrival:   tr.ArrivalTime,
			SwitchStations:     extractSwitchStations(tr.Trains),
		}

		pos := tr.Trains[0].TrainPosition
		if pos == nil {
			// 走行位置情報なしは障害ではなく、定刻運行とみなす
			c.logger.Info("走行位置情報がないため定刻運行とみなします",
				slog.String("departure", departure),
			)
			return times, nil
		}

		times.DelayMinutes = pos.CalcDiffMinutes
		c.logger.Info("列車の遅延情報を取得しました",
			slog.String("departure", departure),
			slog.Int("delay_minutes", times.DelayMinutes),
		)
		return times, nil
	}

	c.logger.Warn("指定時刻の列車が時刻表に見つかりません",
		slog.Int("origin", origin),
		slog.Int("destination", destination),
		slog.String("departure", departure),
	)
	if c.metrics != nil {
		c.metrics.RecordTrainNotFound()
	}
	return nil, &model.TrainNotFoundError{Departure: departure}
}

// CacheStats は共有キャッシュの利用統計を返す。
func (c *Client) CacheStats() Stats {
	return c.cache.Stats()
}

// fetchTimetable はキャッシュ経由で日単位の時刻表を取得する。
func (c *Client) fetchTimetable(ctx context.Context, origin, destination int, day, hour string) (*timetableResponse, error) {
	key := Key{Origin: origin, Destination: destination, Date: day, Hour: hour}
	return c.cache.GetOrFetch(ctx, key, func(ctx context.Context) (*timetableResponse, error) {
		return c.fetchUpstream(ctx, origin, destination, day, hour)
	})
}

// fetchUpstream は上流APIから時刻表を取得する。キャッシュミス時のみ呼ばれる。
func (c *Client) fetchUpstream(ctx context.Context, origin, destination int, day, hour string) (*timetableResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, model.NewUpstreamError("rate_limit", err)
		}
	}

	reqURL, err := url.Parse(c.baseURL + "/timetable/searchTrainLuzForDateTime")
	if err != nil {
		return nil, model.NewUpstreamError("endpoint", err)
	}

	q := reqURL.Query()
	q.Set("fromStation", fmt.Sprintf("%d", origin))
	q.Set("toStation", fmt.Sprintf("%d", destination))
	q.Set("date", day)
	q.Set("hour", hour)
	q.Set("scheduleType", "1")
	q.Set("systemType", "1")
	q.Set("languageId", "hebrew")
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, model.NewUpstreamError("request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	if c.metrics != nil {
		c.metrics.RecordUpstreamRequest()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordUpstreamError()
		c.logger.Error("上流APIの呼び出しに失敗しました",
			slog.Int("origin", origin),
			slog.Int("destination", destination),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError("request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.recordUpstreamError()
		c.logger.Error("上流APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.Int("origin", origin),
			slog.Int("destination", destination),
		)
		return nil, model.NewUpstreamError("request", fmt.Errorf("upstream returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordUpstreamError()
		return nil, model.NewUpstreamError("read", err)
	}

	var payload timetableResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		c.recordUpstreamError()
		c.logger.Error("上流レスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError("decode", err)
	}

	if payload.Result == nil || payload.Result.Travels == nil {
		c.recordUpstreamError()
		c.logger.Error("上流レスポンスに必須キーがありません",
			slog.Int("origin", origin),
			slog.Int("destination", destination),
		)
		return nil, model.NewUpstreamError("decode", errMissingKeys)
	}

	return &payload, nil
}

func (c *Client) recordUpstreamError() {
	if c.metrics != nil {
		c.metrics.RecordUpstreamError()
	}
}

// extractSwitchStations は旅程の乗り換え駅名を進行順で返す。
// 直通（1本のみ）の場合はnil。最後の列車の行き先は最終目的地のため含めない。
func extractSwitchStations(trains []train) []string {
	if len(trains) <= 1 {
		return nil
	}
	names := make([]string, 0, len(trains)-1)
	for _, t := range trains[:len(trains)-1] {
		names = append(names, station.Name(t.DestinationStation))
	}
	return names
}
