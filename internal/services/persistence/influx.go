package persistence

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model/messages"
)

const measurement = "sensor_reading"

// InfluxConfig mirrors the environment bindings for the store.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxStore persists readings as one point per reading: a float field per
// working channel plus a "not_working" field listing silent channels, so a
// reading round-trips without coercing absent values to zero.
type InfluxStore struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
	logger   *zap.Logger
}

func NewInfluxStore(cfg InfluxConfig, logger *zap.Logger) (*InfluxStore, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxStore{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
		logger:   logger,
	}, nil
}

func (s *InfluxStore) Close() { s.client.Close() }

func (s *InfluxStore) Append(ctx context.Context, reading model.SensorReading) error {
	tags := map[string]string{"device_id": reading.DeviceID}

	fields := map[string]interface{}{}
	var silent []string
	for channel, m := range reading.Measurements {
		if m.Reportable() {
			fields[channel] = *m.Value
		} else {
			silent = append(silent, channel)
		}
	}
	sort.Strings(silent)
	fields["not_working"] = strings.Join(silent, ",")

	point := influxdb2.NewPoint(measurement, tags, fields, reading.CapturedAt)
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		s.logger.Error("influx write failed", zap.String("device", reading.DeviceID), zap.Error(err))
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *InfluxStore) Query(ctx context.Context, filter QueryFilter) (Page, error) {
	f := filter.normalized(time.Now())

	total, err := s.count(ctx, f)
	if err != nil {
		return Page{}, err
	}

	flux := buildPageFlux(s.bucket, f)
	res, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	defer func() { _ = res.Close() }()

	items := make([]model.SensorReading, 0, f.Limit)
	for res.Next() {
		rec := res.Record()
		r := model.SensorReading{
			CapturedAt:   rec.Time(),
			Measurements: make(map[string]model.Measurement),
		}
		if v, ok := rec.ValueByKey("device_id").(string); ok {
			r.DeviceID = v
		}
		for _, channel := range messages.KnownChannels() {
			if v := rec.ValueByKey(channel); v != nil {
				if f64, ok := asFloat(v); ok {
					r.Measurements[channel] = messages.OK(f64)
				}
			}
		}
		if nw, ok := rec.ValueByKey("not_working").(string); ok && nw != "" {
			for _, channel := range strings.Split(nw, ",") {
				r.Measurements[channel] = messages.NotWorking()
			}
		}
		items = append(items, r)
	}
	if res.Err() != nil {
		return Page{}, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, res.Err())
	}

	totalPages := int(math.Ceil(float64(total) / float64(f.Limit)))
	return Page{Items: items, TotalPages: totalPages, CurrentPage: f.Page}, nil
}

func (s *InfluxStore) count(ctx context.Context, f QueryFilter) (int64, error) {
	res, err := s.queryAPI.Query(ctx, buildCountFlux(s.bucket, f))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	defer func() { _ = res.Close() }()

	var total int64
	for res.Next() {
		if v, ok := res.Record().Value().(int64); ok {
			total = v
		}
	}
	if res.Err() != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, res.Err())
	}
	return total, nil
}

func deviceFilter(deviceID string) string {
	if deviceID == "" {
		return ""
	}
	return fmt.Sprintf("\n  |> filter(fn: (r) => r.device_id == %q)", deviceID)
}

// buildCountFlux counts readings in range. Every point writes not_working,
// so counting that one field counts points exactly once.
func buildCountFlux(bucket string, f QueryFilter) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q)%s
  |> filter(fn: (r) => r._field == "not_working")
  |> group()
  |> count()
`, bucket, f.From.UTC().Format(time.RFC3339), f.To.UTC().Format(time.RFC3339),
		measurement, deviceFilter(f.DeviceID))
}

func buildPageFlux(bucket string, f QueryFilter) string {
	offset := (f.Page - 1) * f.Limit
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q)%s
  |> pivot(rowKey: ["_time", "device_id"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d, offset: %d)
`, bucket, f.From.UTC().Format(time.RFC3339), f.To.UTC().Format(time.RFC3339),
		measurement, deviceFilter(f.DeviceID), f.Limit, offset)
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}
