package middleware

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	metric_api "go.opentelemetry.io/otel/metric"

	"github.com/pgillich/xqueue-client/internal/tracing"
)

const meterName = "github.com/pgillich/xqueue-client/internal/middleware"

func Int64CounterGetInstrument(name string, options ...metric_api.Int64CounterOption) (metric_api.Int64Counter, error) {
	return regInt64Counter().GetInstrument(name, options...)
}

func Float64CounterGetInstrument(name string, options ...metric_api.Float64CounterOption) (metric_api.Float64Counter, error) {
	return regFloat64Counter().GetInstrument(name, options...)
}

// InstrumentReg stores the already registered instruments
//
//nolint:structcheck // generics
type InstrumentReg[T any, O any] struct {
	instruments   map[string]T
	mu            sync.Mutex
	newInstrument func(name string, options ...O) (T, error)
}

// GetInstrument registers a new instrument, otherwise returns the already created.
func (r *InstrumentReg[T, O]) GetInstrument(name string, options ...O) (T, error) {
	var err error
	r.mu.Lock()
	defer r.mu.Unlock()
	instrument, has := r.instruments[name]
	if !has {
		instrument, err = r.newInstrument(name, options...)
		if err != nil {
			return instrument, fmt.Errorf("unable to register metric %T %s: %w", r, name, err)
		}
		r.instruments[name] = instrument
	}

	return instrument, nil
}

var (
	// meter is the default meter
	meter metric_api.Meter //nolint:gochecknoglobals // private
	// meterOnce is used to init meter
	meterOnce sync.Once //nolint:gochecknoglobals // private
	// int64Counters stores Int64Counters
	int64Counters *InstrumentReg[metric_api.Int64Counter, metric_api.Int64CounterOption] //nolint:gochecknoglobals // private
	// float64Counters stores Float64Counters
	float64Counters *InstrumentReg[metric_api.Float64Counter, metric_api.Float64CounterOption] //nolint:gochecknoglobals // private
)

func regInt64Counter() *InstrumentReg[metric_api.Int64Counter, metric_api.Int64CounterOption] {
	GetMeter(logr.Discard())

	return int64Counters
}

func regFloat64Counter() *InstrumentReg[metric_api.Float64Counter, metric_api.Float64CounterOption] {
	GetMeter(logr.Discard())

	return float64Counters
}

// GetMeter returns the default meter, created from the global meter provider.
// The host application installs a provider (for example a Prometheus reader)
// before the first call; otherwise the measurements are dropped.
// Inits meter and InstrumentRegs (if needed)
func GetMeter(log logr.Logger) metric_api.Meter {
	meterOnce.Do(func() {
		meter = otel.GetMeterProvider().Meter(meterName, metric_api.WithInstrumentationVersion(tracing.Version()))
		log.V(1).Info("meter created", "meterName", meterName)

		int64Counters = &InstrumentReg[metric_api.Int64Counter, metric_api.Int64CounterOption]{
			instruments:   map[string]metric_api.Int64Counter{},
			newInstrument: meter.Int64Counter,
		}
		float64Counters = &InstrumentReg[metric_api.Float64Counter, metric_api.Float64CounterOption]{
			instruments:   map[string]metric_api.Float64Counter{},
			newInstrument: meter.Float64Counter,
		}
	})

	return meter
}

func GetHost(r *http.Request) string {
	if r.Host != "" {
		return r.Host
	}

	return r.URL.Host
}
