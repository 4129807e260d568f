package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

var testBlob = []byte{0x00, 0x7F, 0x45, 0x4C, 0x46, 0x02, 0x01, 0x01, 0x90, 0x0F, 0x05}

func testSignatures() []*types.Signature {
	return []*types.Signature{
		{ID: "sig.elf", Name: "ELF", Pattern: pattern.MustParse("7F 45 4C 46 ?? ?? 01")},
		{ID: "sig.syscall", Name: "syscall", Pattern: pattern.MustParse("?? 0F 05")},
	}
}

func newTestCore(t *testing.T, opts Options) *Core {
	t.Helper()
	if opts.Signatures == nil {
		opts.Signatures = testSignatures()
	}
	core, err := NewCore(opts)
	require.NoError(t, err)
	t.Cleanup(core.Close)
	return core
}

func TestNewCore_Builtin(t *testing.T) {
	core, err := NewCore(Options{})
	require.NoError(t, err)
	defer core.Close()

	builtin, err := GetBuiltinSignatures()
	require.NoError(t, err)
	assert.NotEmpty(t, builtin)
	assert.Len(t, core.Signatures(), len(builtin))
}

func TestCore_Scan(t *testing.T) {
	core := newTestCore(t, Options{ContextBytes: 2})

	result, err := core.Scan(context.Background(), testBlob, "fw.bin")
	require.NoError(t, err)

	assert.Equal(t, "fw.bin", result.Source)
	assert.Equal(t, types.ComputeBlobID(testBlob), result.BlobID)
	require.Len(t, result.Matches, 2)

	elf := result.Matches[0]
	assert.Equal(t, "sig.elf", elf.SignatureID)
	assert.Equal(t, types.OffsetSpan{Start: 1, End: 8}, elf.Location.Offset)
	assert.Equal(t, []byte{0x00}, elf.Snippet.Before)
	assert.Equal(t, []byte{0x90, 0x0F}, elf.Snippet.After)

	assert.Equal(t, types.OffsetSpan{Start: 8, End: 11}, result.Matches[1].Location.Offset)

	exists, err := core.Store().BlobExists(result.BlobID)
	require.NoError(t, err)
	assert.True(t, exists)

	findings, err := core.Store().GetFindings()
	require.NoError(t, err)
	assert.Len(t, findings, 2)

	prov, err := core.Store().GetProvenance(result.BlobID)
	require.NoError(t, err)
	require.Len(t, prov, 1)
	assert.Equal(t, "extended", prov[0].Kind())
}

func TestCore_ScanNoContext(t *testing.T) {
	core := newTestCore(t, Options{ContextBytes: -1})

	result, err := core.Scan(context.Background(), testBlob, "fw.bin")
	require.NoError(t, err)
	require.NotEmpty(t, result.Matches)
	assert.Empty(t, result.Matches[0].Snippet.Before)
	assert.Empty(t, result.Matches[0].Snippet.After)
}

func TestCore_ScanBatch(t *testing.T) {
	core := newTestCore(t, Options{})

	result, err := core.ScanBatch(context.Background(), []ContentItem{
		{Source: "empty", Content: []byte{0x01, 0x02}},
		{Source: "fw", Content: testBlob},
	})
	require.NoError(t, err)

	require.Len(t, result.Results, 2)
	assert.Empty(t, result.Results[0].Matches)
	assert.Len(t, result.Results[1].Matches, 2)
	assert.Equal(t, 2, result.Total)
}

func TestCore_ScanBatchCanceled(t *testing.T) {
	core := newTestCore(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := core.ScanBatch(ctx, []ContentItem{{Source: "fw", Content: testBlob}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCore_Find(t *testing.T) {
	core := newTestCore(t, Options{})
	haystack := []byte{0x10, 0x48, 0x2E, 0x99, 0x48, 0x2E}

	first, err := core.Find(context.Background(), haystack, []string{"48 2E", "?? 99", "AA"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, -1}, first.Offsets)
	assert.False(t, first.Cached)

	// Same set, different spelling.
	second, err := core.Find(context.Background(), haystack, []string{"48 2e", "? 99", "aa"})
	require.NoError(t, err)
	assert.Equal(t, first.Offsets, second.Offsets)
	assert.True(t, second.Cached)
}

func TestCore_FindParseError(t *testing.T) {
	core := newTestCore(t, Options{})

	_, err := core.Find(context.Background(), []byte{0x48}, []string{"48", "ZZ"})
	require.Error(t, err)
	assert.ErrorIs(t, err, pattern.ErrSyntax)
}

func TestCore_Reload(t *testing.T) {
	core := newTestCore(t, Options{})

	err := core.Reload(context.Background(), []*types.Signature{
		{ID: "sig.nop", Name: "nop sled", Pattern: pattern.MustParse("90 0F")},
	})
	require.NoError(t, err)
	require.Len(t, core.Signatures(), 1)

	result, err := core.Scan(context.Background(), testBlob, "fw.bin")
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "sig.nop", result.Matches[0].SignatureID)

	// A failed reload keeps the current set.
	require.Error(t, core.Reload(context.Background(), nil))
	assert.Len(t, core.Signatures(), 1)
}

func TestCore_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	core := newTestCore(t, Options{Meter: provider.Meter("test")})

	ctx := context.Background()
	_, err := core.Scan(ctx, testBlob, "fw.bin")
	require.NoError(t, err)
	_, err = core.Scan(ctx, []byte{0x01}, "other")
	require.NoError(t, err)
	_, err = core.Find(ctx, testBlob, []string{"0F 05"})
	require.NoError(t, err)
	_, err = core.Find(ctx, testBlob, []string{"0F 05"})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	assert.Equal(t, int64(4), sumOf(t, rm, "sigscan_blobs_scanned_total"))
	assert.Equal(t, int64(2*len(testBlob)+1+len(testBlob)), sumOf(t, rm, "sigscan_bytes_scanned_total"))
	assert.Equal(t, int64(4), sumOf(t, rm, "sigscan_matches_total"))
	assert.Equal(t, int64(1), sumOf(t, rm, "sigscan_searcher_cache_hits_total"))
	// One compile for the signatures, one for the first Find.
	assert.Equal(t, uint64(2), histogramCount(t, rm, "sigscan_compile_duration_ms"))
}

// =============================================================================
// HELPERS
// =============================================================================

func findMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return metricdata.Metrics{}
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	sum, ok := findMetric(t, rm, name).Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func histogramCount(t *testing.T, rm metricdata.ResourceMetrics, name string) uint64 {
	t.Helper()
	hist, ok := findMetric(t, rm, name).Data.(metricdata.Histogram[float64])
	require.True(t, ok, "%s is not a float64 histogram", name)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	return count
}
