package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipowatch/internal/ipo"
)

const cninfoListing = `{
  "resultcode": 200,
  "resultmsg": "success",
  "records": [
    {"证劵代码": "688001", "证券简称": "星河科技", "申购日期": "2025-12-22", "上市日期": "2026-01-05",
     "网上申购日期": "2025-12-22 00:00:00", "网上申购截止日期": "2025-12-24", "发行价": 15.8,
     "总发行数量": "2500万股", "网上申购上限": "0.6万", "上网发行中签率": 0.0412},
    {"SECCODE": "301001", "SECNAME": "远航电子", "申购日期": "2025-12-26",
     "网上申购截止日期": "2025-12-26", "发行价": null},
    {"证劵代码": "603001", "证券简称": "晨光材料", "申购日期": "2026-01-20"}
  ]
}`

func TestCninfoSourceMapsFieldsByName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(cninfoListing))
	}))
	defer srv.Close()

	source, err := NewCninfoSource(newTestClient(), srv.URL, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "cninfo", source.Name())

	records, err := source.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, ipo.MarketMainland, first.Market)
	assert.Equal(t, "688001", first.Code)
	assert.Equal(t, "星河科技", first.Name)
	assert.Equal(t, "2025-12-22至2025-12-24", first.Window)
	require.NotNil(t, first.IssuePrice)
	assert.InDelta(t, 15.8, *first.IssuePrice, 1e-9)
	require.NotNil(t, first.IssueQuantity)
	assert.InDelta(t, 2500, *first.IssueQuantity, 1e-9)
	require.NotNil(t, first.SubscriptionLimit)
	assert.InDelta(t, 0.6, *first.SubscriptionLimit, 1e-9)
	assert.Equal(t, "4.1200", first.LotteryRate)

	second := records[1]
	assert.Equal(t, "301001", second.Code)
	assert.Equal(t, "2025-12-26至2025-12-26", second.Window)
	assert.Nil(t, second.IssuePrice)

	third := records[2]
	assert.Equal(t, "2026-01-20至2026-01-20", third.Window)
}

func TestCninfoSourceFailsOnBadPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html>maintenance</html>"},
		{name: "error result", body: `{"resultcode": 401, "resultmsg": "unauthorized", "records": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			source, err := NewCninfoSource(newTestClient(), srv.URL, zerolog.Nop())
			require.NoError(t, err)
			_, err = source.Fetch(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestBuildWindow(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2025-12-22至2025-12-24", BuildWindow("2025-12-22", "2025-12-24", "2025-12-20"))
	assert.Equal(t, "2025-12-24至2025-12-24", BuildWindow("", "2025-12-24", "2025-12-20"))
	assert.Equal(t, "2025-12-20至2025-12-20", BuildWindow("", "", "2025-12-20 00:00:00"))
	assert.Empty(t, BuildWindow("", "", ""))
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]float64{
		"2500万股": 2500,
		"1.2万":   1.2,
		"1,234.5": 1234.5,
		"15.8":    15.8,
	} {
		got := ParseAmount(raw)
		require.NotNil(t, got, raw)
		assert.InDelta(t, want, *got, 1e-9, raw)
	}
	assert.Nil(t, ParseAmount(""))
	assert.Nil(t, ParseAmount("--"))
	assert.Nil(t, ParseAmount("pending"))
}

func TestCninfoProfileEnricher(t *testing.T) {
	long := strings.Repeat("芯", descriptionLimit+20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		switch r.PostForm.Get("scode") {
		case "688001":
			_, _ = w.Write([]byte(`{"records":[{"所属行业":"半导体","主营业务":"` + long + `"}]}`))
		default:
			_, _ = w.Write([]byte(`{"records":[]}`))
		}
	}))
	defer srv.Close()

	enricher := NewCninfoProfileEnricher(newTestClient(), srv.URL, zerolog.Nop())

	rec := ipo.Record{Code: "688001"}
	require.NoError(t, enricher.Enrich(context.Background(), &rec))
	assert.Equal(t, "半导体", rec.Details.Industry)
	assert.True(t, strings.HasSuffix(rec.Details.Description, "..."))
	assert.Equal(t, descriptionLimit+3, len([]rune(rec.Details.Description)))

	missing := ipo.Record{Code: "000000"}
	assert.Error(t, enricher.Enrich(context.Background(), &missing))
	assert.Empty(t, missing.Details.Industry)
}
