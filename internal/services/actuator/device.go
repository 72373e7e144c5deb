package actuator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

// DeviceClient is the wire toward the pump controllers. Implementations must
// return quickly: the gateway holds a per-device slot for the whole call.
type DeviceClient interface {
	PushPumpSchedule(ctx context.Context, deviceID string, onSec, offSec int) error
	PushPumpStop(ctx context.Context, deviceID string) error
	PushDosing(ctx context.Context, pumpNumber, driveLevel, durationSec int) error
	PushDosingStop(ctx context.Context, pumpNumber int) error
}

func mkCB(name string, fails int, open, interval time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: interval,
		Timeout:  open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
	})
}

// HTTPDeviceClient pushes commands to the controller firmware over HTTP.
type HTTPDeviceClient struct {
	rc *resty.Client
	cb *gobreaker.CircuitBreaker
}

func NewHTTPDeviceClient(baseURL string, timeout time.Duration) *HTTPDeviceClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &HTTPDeviceClient{
		rc: rc,
		cb: mkCB("device", 5, 10*time.Second, 30*time.Second),
	}
}

func (c *HTTPDeviceClient) PushPumpSchedule(ctx context.Context, deviceID string, onSec, offSec int) error {
	return c.post(ctx, "/api/waterpump/settings", map[string]any{
		"esp":         deviceID,
		"onDuration":  onSec,
		"offDuration": offSec,
	})
}

func (c *HTTPDeviceClient) PushPumpStop(ctx context.Context, deviceID string) error {
	return c.post(ctx, "/api/waterpump/stop", map[string]any{"esp": deviceID})
}

func (c *HTTPDeviceClient) PushDosing(ctx context.Context, pumpNumber, driveLevel, durationSec int) error {
	return c.post(ctx, "/api/peristaltic/control", map[string]any{
		"peristaltic": map[string]int{
			"pump":     pumpNumber,
			"pwm":      driveLevel,
			"duration": durationSec,
		},
	})
}

func (c *HTTPDeviceClient) PushDosingStop(ctx context.Context, pumpNumber int) error {
	return c.PushDosing(ctx, pumpNumber, 0, 0)
}

func (c *HTTPDeviceClient) post(ctx context.Context, path string, body any) error {
	_, err := c.cb.Execute(func() (any, error) {
		resp, err := c.rc.R().SetContext(ctx).SetBody(body).Post(path)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("device rejected %s: %s", path, resp.Status())
		}
		return nil, nil
	})
	return err
}

// IsRetryable classifies wire errors: only timeouts and connection aborts
// are worth another attempt. A device that answered with an error status has
// already made up its mind, and an open breaker means stop pushing.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}
