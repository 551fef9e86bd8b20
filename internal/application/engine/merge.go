package engine

import (
	"sort"
	"time"

	"github.com/alejandrodnm/tradebot/internal/domain"
)

// MergeSignals combines the signals emitted for one symbol in one cycle into
// at most one merged signal. Signals with confidence strictly below
// minConfidence are discarded before merging; if nothing survives the result
// is nil. When all survivors agree on a direction the merged confidence is
// the maximum of theirs. When they disagree, confidences are summed signed
// (long positive, short negative) and the net decides: within flatEpsilon of
// zero the merged signal is flat, otherwise the sign gives the direction and
// the magnitude the confidence.
func MergeSignals(symbol string, signals []domain.Signal, minConfidence, flatEpsilon float64) *domain.MergedSignal {
	surviving := make([]domain.Signal, 0, len(signals))
	for _, s := range signals {
		if s.Confidence < minConfidence {
			continue
		}
		surviving = append(surviving, s)
	}
	if len(surviving) == 0 {
		return nil
	}

	sources := make([]string, 0, len(surviving))
	var (
		ts       time.Time
		net      float64
		maxConf  float64
		firstDir domain.Direction
		agree    = true
	)
	for i, s := range surviving {
		sources = append(sources, s.StrategyID)
		if s.Timestamp.After(ts) {
			ts = s.Timestamp
		}
		switch s.Direction {
		case domain.DirectionLong:
			net += s.Confidence
		case domain.DirectionShort:
			net -= s.Confidence
		}
		if s.Confidence > maxConf {
			maxConf = s.Confidence
		}
		if i == 0 {
			firstDir = s.Direction
		} else if s.Direction != firstDir {
			agree = false
		}
	}
	sort.Strings(sources)

	merged := &domain.MergedSignal{
		Symbol:    symbol,
		Sources:   sources,
		Timestamp: ts,
	}

	if agree {
		merged.Direction = firstDir
		merged.Confidence = maxConf
		return merged
	}

	switch {
	case net > flatEpsilon:
		merged.Direction = domain.DirectionLong
		merged.Confidence = min1(net)
	case net < -flatEpsilon:
		merged.Direction = domain.DirectionShort
		merged.Confidence = min1(-net)
	default:
		merged.Direction = domain.DirectionFlat
		merged.Confidence = 0
	}
	return merged
}

func min1(x float64) float64 {
	if x > 1 {
		return 1
	}
	return x
}
