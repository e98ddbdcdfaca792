package converter

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/grafana/webcil/pkg/peimage/peimagetest"
	"github.com/grafana/webcil/pkg/webcil"
)

func writeSample(t *testing.T, fs afero.Fs, path string, img peimagetest.Image) []byte {
	t.Helper()
	data := img.Build()
	require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
	return data
}

func TestConvert(t *testing.T) {
	for _, pe64 := range []bool{false, true} {
		fs := afero.NewMemMapFs()
		sample := peimagetest.Sample()
		sample.PE64 = pe64
		src := writeSample(t, fs, "/bin/app.dll", sample)

		reg := prometheus.NewRegistry()
		c := New(WithFs(fs), WithRegisterer(reg), WithLogger(log.NewNopLogger()))
		require.NoError(t, c.Convert(context.Background(), "/bin/app.dll", "/bin/app.webcil"))

		f, err := webcil.Open(fs, "/bin/app.webcil")
		require.NoError(t, err)

		require.Equal(t, webcil.NewHeader(2,
			webcil.DataDirectory{RVA: peimagetest.SampleCLIHeaderRVA, Size: 0x48},
			webcil.DataDirectory{RVA: peimagetest.SampleDebugRVA, Size: 2 * webcil.DebugDirectoryEntrySize},
		), f.Header)
		require.Equal(t, []webcil.SectionHeader{
			{VirtualSize: 0x200, VirtualAddress: 0x2000, SizeOfRawData: 0x200, PointerToRawData: 56},
			{VirtualSize: 0x100, VirtualAddress: 0x4000, SizeOfRawData: 0x100, PointerToRawData: 56 + 0x200},
		}, f.Sections)

		entries, err := f.DebugDirectory()
		require.NoError(t, err)
		want := peimagetest.SampleDebugEntries()
		want[0].DataPointer = peimagetest.SampleCodeViewPtr - (0x200 - 56)
		require.Equal(t, want, entries)

		// The rewritten pointer still addresses the CodeView record.
		data, err := afero.ReadFile(fs, "/bin/app.webcil")
		require.NoError(t, err)
		require.Len(t, data, 56+0x300)
		require.Equal(t, []byte("RSDS"), data[entries[0].DataPointer:entries[0].DataPointer+4])

		// Apart from the debug directory, payloads are copied verbatim.
		sdata, err := io.ReadAll(f.Section(1))
		require.NoError(t, err)
		require.Equal(t, src[0x400:0x500], sdata)
		text, err := io.ReadAll(f.Section(0))
		require.NoError(t, err)
		dbg := peimagetest.SampleDebugRVA - 0x2000
		require.Equal(t, src[0x200:0x200+dbg], text[:dbg])
		require.Equal(t, src[0x200+dbg+56:0x400], text[dbg+56:])
		require.Equal(t, webcil.EncodeDebugDirectory(want), text[dbg:dbg+56])
		require.NoError(t, f.Close())

		require.Equal(t, 1.0, testutil.ToFloat64(c.metrics.conversions.WithLabelValues(statusSuccess)))
		require.Equal(t, float64(0x300), testutil.ToFloat64(c.metrics.sectionBytes))
		require.Equal(t, float64(0x200-56), testutil.ToFloat64(c.metrics.bytesSaved))
		require.Equal(t, 1.0, testutil.ToFloat64(c.metrics.debugEntries.WithLabelValues(debugEntryRewritten)))
		require.Equal(t, 1.0, testutil.ToFloat64(c.metrics.debugEntries.WithLabelValues(debugEntryCopied)))
	}
}

func TestConvertDeterministic(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSample(t, fs, "/app.dll", peimagetest.Sample())
	c := New(WithFs(fs))

	require.NoError(t, c.Convert(context.Background(), "/app.dll", "/a.webcil"))
	require.NoError(t, c.Convert(context.Background(), "/app.dll", "/b.webcil"))
	a, err := afero.ReadFile(fs, "/a.webcil")
	require.NoError(t, err)
	b, err := afero.ReadFile(fs, "/b.webcil")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestConvertOverwritesExistingOutput(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSample(t, fs, "/app.dll", peimagetest.Sample())
	require.NoError(t, afero.WriteFile(fs, "/app.webcil", bytes.Repeat([]byte{1}, 4096), 0o644))

	require.NoError(t, New(WithFs(fs)).Convert(context.Background(), "/app.dll", "/app.webcil"))
	data, err := afero.ReadFile(fs, "/app.webcil")
	require.NoError(t, err)
	require.Len(t, data, 56+0x300)
}

func TestConvertWithoutDebugDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	sample := peimagetest.Sample()
	sample.Debug = webcil.DataDirectory{}
	writeSample(t, fs, "/app.dll", sample)

	require.NoError(t, New(WithFs(fs)).Convert(context.Background(), "/app.dll", "/app.webcil"))
	f, err := webcil.Open(fs, "/app.webcil")
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, webcil.DataDirectory{}, f.Header.Debug)
	entries, err := f.DebugDirectory()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name      string
		build     func() []byte
		opts      []Option
		malformed bool
		status    string
		keep      bool
	}{
		{
			name: "debug pointer outside every section",
			build: func() []byte {
				sample := peimagetest.Sample()
				entries := peimagetest.SampleDebugEntries()
				entries[0].DataPointer = 0x900
				peimagetest.PutDebugDirectory(sample.Sections[0].Data, peimagetest.SampleDebugRVA-0x2000, entries...)
				return sample.Build()
			},
			malformed: true,
			status:    statusErrorMalformed,
		},
		{
			name: "partial output is kept on request",
			build: func() []byte {
				sample := peimagetest.Sample()
				entries := peimagetest.SampleDebugEntries()
				entries[0].DataPointer = 0x100
				peimagetest.PutDebugDirectory(sample.Sections[0].Data, peimagetest.SampleDebugRVA-0x2000, entries...)
				return sample.Build()
			},
			opts:      []Option{WithKeepPartialOutput()},
			malformed: true,
			status:    statusErrorMalformed,
			keep:      true,
		},
		{
			name: "debug directory in the memory-only tail of .text",
			build: func() []byte {
				sample := peimagetest.Sample()
				sample.Sections[0].VirtualSize = 0x400
				sample.Debug.RVA = 0x2250
				// 0x2250 maps to file offset 0x450, inside .sdata.
				peimagetest.PutDebugDirectory(sample.Sections[1].Data, 0x50, peimagetest.SampleDebugEntries()...)
				return sample.Build()
			},
			malformed: true,
			status:    statusErrorMalformed,
		},
		{
			name: "truncated section data",
			build: func() []byte {
				data := peimagetest.Sample().Build()
				return data[:len(data)-0x80]
			},
			malformed: true,
			status:    statusErrorMalformed,
		},
		{
			name: "not a PE file",
			build: func() []byte {
				data := make([]byte, 128)
				copy(data, "MZ")
				return data
			},
			status: statusErrorOther,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/app.dll", tt.build(), 0o644))

			c := New(append([]Option{WithFs(fs), WithRegisterer(prometheus.NewRegistry())}, tt.opts...)...)
			err := c.Convert(context.Background(), "/app.dll", "/app.webcil")
			require.Error(t, err)
			require.Equal(t, tt.malformed, IsMalformedInput(err), err)
			require.Equal(t, 1.0, testutil.ToFloat64(c.metrics.conversions.WithLabelValues(tt.status)))

			exists, err := afero.Exists(fs, "/app.webcil")
			require.NoError(t, err)
			require.Equal(t, tt.keep, exists)
		})
	}
}

func TestConvertUninitializedDataSection(t *testing.T) {
	fs := afero.NewMemMapFs()
	sample := peimagetest.Sample()
	bss := peimagetest.Section{Name: ".bss", VirtualAddress: 0x1000, VirtualSize: 0x100}
	sample.Sections = append([]peimagetest.Section{bss}, sample.Sections...)
	writeSample(t, fs, "/app.dll", sample)

	require.NoError(t, New(WithFs(fs)).Convert(context.Background(), "/app.dll", "/app.webcil"))
	f, err := webcil.Open(fs, "/app.webcil")
	require.NoError(t, err)
	defer f.Close()

	first := webcil.DirectorySize(3)
	require.Equal(t, []webcil.SectionHeader{
		{VirtualSize: 0x100, VirtualAddress: 0x1000, SizeOfRawData: 0, PointerToRawData: first},
		{VirtualSize: 0x200, VirtualAddress: 0x2000, SizeOfRawData: 0x200, PointerToRawData: first},
		{VirtualSize: 0x100, VirtualAddress: 0x4000, SizeOfRawData: 0x100, PointerToRawData: first + 0x200},
	}, f.Sections)

	entries, err := f.DebugDirectory()
	require.NoError(t, err)
	require.Equal(t, uint32(peimagetest.SampleCodeViewPtr-(0x200-first)), entries[0].DataPointer)
	buf, err := f.ReadRVA(peimagetest.SampleCodeViewRVA, 4)
	require.NoError(t, err)
	require.Equal(t, []byte("RSDS"), buf)
}

func TestConvertMissingInput(t *testing.T) {
	fs := afero.NewMemMapFs()
	err := New(WithFs(fs)).Convert(context.Background(), "/missing.dll", "/missing.webcil")
	require.ErrorContains(t, err, "failed to open input")
}

func TestConvertBigEndianHost(t *testing.T) {
	hostBigEndian = true
	defer func() { hostBigEndian = false }()

	fs := afero.NewMemMapFs()
	writeSample(t, fs, "/app.dll", peimagetest.Sample())
	c := New(WithFs(fs), WithRegisterer(prometheus.NewRegistry()))
	err := c.Convert(context.Background(), "/app.dll", "/app.webcil")
	require.ErrorIs(t, err, webcil.ErrUnsupportedPlatform)
	require.Equal(t, 1.0, testutil.ToFloat64(c.metrics.conversions.WithLabelValues(statusErrorPlatform)))

	exists, err := afero.Exists(fs, "/app.webcil")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestConvertCanceled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSample(t, fs, "/app.dll", peimagetest.Sample())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(WithFs(fs), WithRegisterer(prometheus.NewRegistry()))
	err := c.Convert(ctx, "/app.dll", "/app.webcil")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1.0, testutil.ToFloat64(c.metrics.conversions.WithLabelValues(statusErrorCanceled)))
	exists, err := afero.Exists(fs, "/app.webcil")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := peimagetest.Sample().Build()
	img, err := peimageNew(data)
	require.NoError(t, err)

	out, err := fs.Create("/out.webcil")
	require.NoError(t, err)
	defer out.Close()

	layout, err := New().Write(context.Background(), img, out)
	require.NoError(t, err)
	require.Equal(t, Plan(img), layout)

	st, err := out.Stat()
	require.NoError(t, err)
	require.Equal(t, layout.Size(), st.Size())
}

func TestDefaultOutputPath(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"app.dll", "app.webcil"},
		{"/tmp/System.Private.CoreLib.dll", "/tmp/System.Private.CoreLib.webcil"},
		{"noext", "noext.webcil"},
		{"dir.v1/app", "dir.v1/app.webcil"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, DefaultOutputPath(tt.input))
	}
}
