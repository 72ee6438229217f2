package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/bighogz/finscan/internal/models"
)

// fastFields lists, per output key, the payload names the library may use.
var fastFields = []struct {
	key   string
	paths []string
}{
	{"currentPrice", []string{"regularMarketPrice", "currentPrice", "lastPrice"}},
	{"volume", []string{"regularMarketVolume", "volume", "lastVolume"}},
	{"marketCap", []string{"marketCap"}},
}

// YFinance adapts go-yfinance to Library. Results are read back from their
// JSON form so only Yahoo's field names matter, not the Go struct layout.
type YFinance struct{}

func NewYFinance() *YFinance {
	return &YFinance{}
}

func (y *YFinance) FastInfo(ctx context.Context, symbol string) (*models.Metrics, error) {
	payload, err := call(ctx, symbol, func(t *ticker.Ticker) (any, error) { return t.Quote() })
	if err != nil {
		return nil, err
	}
	out := models.NewMetrics()
	for _, f := range fastFields {
		if v, ok := lookup(payload, f.paths...); ok {
			out.Set(f.key, v)
		}
	}
	return out, nil
}

func (y *YFinance) Info(ctx context.Context, symbol string) (*models.Metrics, error) {
	payload, err := call(ctx, symbol, func(t *ticker.Ticker) (any, error) { return t.Info() })
	if err != nil {
		return nil, err
	}
	out := models.NewMetrics()
	for _, k := range infoFields {
		if v, ok := lookup(payload, k); ok {
			out.Set(k, v)
		}
	}
	return out, nil
}

type result struct {
	payload gjson.Result
	err     error
}

// call runs fn on a fresh ticker. The library takes no context, so a
// cancelled ctx returns early and leaves the call to finish on its own.
func call(ctx context.Context, symbol string, fn func(*ticker.Ticker) (any, error)) (gjson.Result, error) {
	done := make(chan result, 1)
	go func() {
		t, err := ticker.New(symbol)
		if err != nil {
			done <- result{err: fmt.Errorf("yfinance ticker %s: %w", symbol, err)}
			return
		}
		defer t.Close()
		v, err := fn(t)
		if err != nil {
			done <- result{err: fmt.Errorf("yfinance %s: %w", symbol, err)}
			return
		}
		b, err := json.Marshal(v)
		if err != nil {
			done <- result{err: fmt.Errorf("yfinance %s: encode: %w", symbol, err)}
			return
		}
		done <- result{payload: gjson.ParseBytes(b)}
	}()
	select {
	case <-ctx.Done():
		return gjson.Result{}, ctx.Err()
	case r := <-done:
		return r.payload, r.err
	}
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// lookup returns the first non-empty, non-zero value among paths, trying
// both the Yahoo spelling and its exported Go field form.
func lookup(payload gjson.Result, paths ...string) (string, bool) {
	for _, p := range paths {
		for _, name := range []string{p, upperFirst(p)} {
			v := payload.Get(name)
			switch v.Type {
			case gjson.Number:
				if v.Float() != 0 {
					return formatFloat(v.Float()), true
				}
			case gjson.String:
				if s := strings.TrimSpace(v.String()); s != "" {
					return s, true
				}
			}
		}
	}
	return "", false
}
