package marketdata

import (
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/alejandrodnm/tradebot/internal/domain"
)

// GenerateSeries builds a complete synthetic history per symbol for
// backtesting, using the same seeded walk as the mock source. The start time
// is part of the input, so two calls with identical arguments return
// identical series.
func GenerateSeries(symbols []string, bars int, step time.Duration, start time.Time) map[string][]domain.Candle {
	series := make(map[string][]domain.Candle, len(symbols))
	for _, sym := range symbols {
		h := fnv.New64a()
		h.Write([]byte(sym))
		rng := rand.New(rand.NewSource(int64(h.Sum64())))

		out := make([]domain.Candle, 0, bars)
		prev := basePrice(sym)
		ts := start
		m := &Mock{}
		for i := 0; i < bars; i++ {
			bar := m.nextBar(rng, sym, prev, ts)
			out = append(out, bar)
			prev = bar.Close
			ts = ts.Add(step)
		}
		series[sym] = out
	}
	return series
}
