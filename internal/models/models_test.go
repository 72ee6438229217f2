package models

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_SetKeepsPositionAndLastValue(t *testing.T) {
	m := NewMetrics()
	m.Set("P/E", "20")
	m.Set("Beta", "1.1")
	m.Set("P/E", "21")

	assert.Equal(t, []string{"P/E", "Beta"}, m.Keys())
	assert.Equal(t, "21", m.Value("P/E"))
	assert.Equal(t, 2, m.Len())
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.Equal(t, 0, m.Len())
	assert.False(t, m.Has("x"))
	assert.False(t, m.Usable())
	assert.Nil(t, m.Keys())
	m.Delete("x")
}

func TestMetrics_MarshalKeepsOrder(t *testing.T) {
	m := MetricsOf("Zeta", "1", "Alpha", "2", "Mid \"q\"", "3")
	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"Zeta":"1","Alpha":"2","Mid \"q\"":"3"}`, string(b))

	var back Metrics
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, m.Keys(), back.Keys())
	assert.Equal(t, "3", back.Value(`Mid "q"`))
}

func TestMetrics_UnmarshalRejectsArray(t *testing.T) {
	var m Metrics
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &m))
}

func TestMetrics_Delete(t *testing.T) {
	m := MetricsOf("a", "1", "b", "2", "c", "3")
	m.Delete("b")
	assert.Equal(t, []string{"a", "c"}, m.Keys())
	assert.False(t, m.Has("b"))
}

func TestErrorMetrics_OnlyErrorKey(t *testing.T) {
	m := ErrorMetrics("rate limited")
	assert.Equal(t, []string{ErrorKey}, m.Keys())
	reason, ok := m.ErrorReason()
	assert.True(t, ok)
	assert.Equal(t, "rate limited", reason)
	assert.False(t, m.Usable())
}

func trade(kv ...string) InsiderTrade {
	return NewInsiderTrade(MetricsOf(kv...))
}

func TestInsiderTrade_Side(t *testing.T) {
	tests := []struct {
		name  string
		trade InsiderTrade
		want  Side
	}{
		{"purchase", trade("Trade Type", "P - Purchase", "Qty", "-100"), SideBuy},
		{"sale", trade("Trade Type", "S - Sale+OE", "Qty", "+100"), SideSell},
		{"lowercase with padding", trade("Trade Type", "  s - sale"), SideSell},
		{"gift is neither", trade("Trade Type", "G - Gift", "Qty", "+5"), SideNone},
		{"qty plus without type", trade("Qty", "+1,000"), SideBuy},
		{"qty minus without type", trade("Trade Type", "", "Qty", "-250"), SideSell},
		{"unsigned qty", trade("Qty", "300"), SideNone},
		{"empty", trade(), SideNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.trade.Side())
		})
	}
}

func TestNewInsiderData_Counts(t *testing.T) {
	d := NewInsiderData([]InsiderTrade{
		trade("Trade Type", "P - Purchase"),
		trade("Trade Type", "P - Purchase"),
		trade("Trade Type", "S - Sale"),
		trade("Trade Type", "M - OptEx"),
	})
	assert.Equal(t, 2, d.BuyCount)
	assert.Equal(t, 1, d.SellCount)
	assert.Equal(t, 4, d.TradeCount)
	assert.Equal(t, "2:1", d.BuySellRatio)
	assert.LessOrEqual(t, d.BuyCount+d.SellCount, len(d.Trades))
}

func TestNewInsiderData_EmptyRatio(t *testing.T) {
	d := NewInsiderData(nil)
	assert.Equal(t, "0:0", d.BuySellRatio)
	assert.Regexp(t, regexp.MustCompile(`^\d+:\d+$`), d.BuySellRatio)
	assert.NotNil(t, d.Trades)
}

func TestInsiderData_ErrorMarshalsAlone(t *testing.T) {
	b, err := json.Marshal(InsiderError("fetch failed"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"fetch failed"}`, string(b))
}

func TestBrokerData_ErrorMarshalsAlone(t *testing.T) {
	b, err := json.Marshal(BrokerError("not configured"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"not configured"}`, string(b))
}

func TestStockRecord_Merged(t *testing.T) {
	r := &StockRecord{
		Finviz: MetricsOf("Price", "150.00", "P/E", "28.5"),
		Yahoo:  MetricsOf("currentPrice", "150.10", "P/E", "99"),
		Broker: BrokerData{MarketData: MetricsOf("Volume", "1M")},
	}
	m := r.Merged()
	assert.Equal(t, []string{"Price", "P/E", "currentPrice", "Volume"}, m.Keys())
	assert.Equal(t, "28.5", m.Value("P/E"))
}

func TestStockRecord_MergedSkipsErrors(t *testing.T) {
	r := &StockRecord{
		Finviz: NewMetrics(),
		Yahoo:  ErrorMetrics("rate limited"),
		Broker: BrokerError("not configured"),
	}
	assert.Equal(t, 0, r.Merged().Len())
}

func TestGroupMetrics(t *testing.T) {
	g := GroupMetrics(MetricsOf("P/E", "20", "ROE", "15%", "Beta", "1.1", "EPS next Y", "8%", "earningsGrowth", "0.1", "Price", "5"))
	assert.Equal(t, []string{"P/E"}, g.Valuation.Keys())
	assert.Equal(t, []string{"ROE"}, g.Financial.Keys())
	assert.Equal(t, []string{"Beta"}, g.Technical.Keys())
	assert.Equal(t, []string{"EPS next Y", "earningsGrowth"}, g.Growth.Keys())
}

func TestGroupMetrics_Nil(t *testing.T) {
	g := GroupMetrics(nil)
	assert.Equal(t, 0, g.Valuation.Len())
	assert.NotNil(t, g.Growth)
}
