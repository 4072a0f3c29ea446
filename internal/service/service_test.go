package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/order-recon/internal/delivery"
	"github.com/franz/order-recon/internal/partition"
	"github.com/franz/order-recon/internal/pipeline"
	"github.com/franz/order-recon/internal/store"
	"github.com/franz/order-recon/internal/table"
	"github.com/franz/order-recon/internal/util"
	"github.com/franz/order-recon/internal/workbook"
)

var day = time.Date(2025, 11, 5, 8, 30, 0, 0, time.UTC)

func build(t *testing.T, columns []string, rows ...[]interface{}) *table.Table {
	t.Helper()
	tbl := table.MustNew("src", columns)
	for _, r := range rows {
		vals := make([]table.Value, len(r))
		for i, x := range r {
			vals[i] = table.FromInterface(x)
		}
		require.NoError(t, tbl.Append(vals))
	}
	return tbl
}

func archive(t *testing.T, files map[string]*table.Table) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, tbl := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		require.NoError(t, workbook.Write(w, tbl, "Hoja1"))
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func fullUpload(t *testing.T) []byte {
	return archive(t, map[string]*table.Table{
		"ORDENES.xlsx": build(t, []string{"LRDTE", "LPROD", "LORD", "LLINE", "HNAME", "LQORD"},
			[]interface{}{20251115, "P1", 100, 1, "ACME", 2},
			[]interface{}{20251031, "P2", 100, 2, "Globex", 3},
			[]interface{}{20251105, "P3", 101, 1, "ACME", 4},
		),
		"PRECIOS.xlsx": build(t, []string{"LPROD", "VALOR", "On Hand"},
			[]interface{}{"P1", 10, 5},
			[]interface{}{"P2", "3", 1},
		),
		"GESTION.xlsx": build(t, []string{"HNAME", "RESPONSABLE"},
			[]interface{}{"ACME", "Alice"},
			[]interface{}{"Globex", "Bob"},
		),
		"LEEME.txt": table.MustNew("x", []string{"ignored"}),
	})
}

func newService(ds store.Dataset) *Service {
	return New(ds, Options{Now: func() time.Time { return day }})
}

func update(t *testing.T, svc *Service, data []byte) (*UpdateResult, error) {
	t.Helper()
	return svc.Update(context.Background(), bytes.NewReader(data), int64(len(data)), UpdateOptions{})
}

func TestUpdateAndExport(t *testing.T) {
	mem := store.NewMemory()
	svc := newService(mem)

	res, err := update(t, svc, fullUpload(t))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Combined.Len())
	assert.Equal(t, []string{"LEEME.txt"}, res.Ignored)
	assert.Equal(t, []string{"ORDERS", "PRICING", "MANAGEMENT"}, res.Sources())

	// Processing date defaults to the service clock
	days, ok := res.Combined.Get(0, "CONTROL_DIAS").Int()
	require.True(t, ok)
	assert.EqualValues(t, 10, days)

	stored, err := svc.Dataset(context.Background())
	require.NoError(t, err)
	assert.Same(t, res.Combined, stored)

	runs, err := svc.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunSucceeded, runs[0].Status)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, 3, runs[0].Rows)

	var out bytes.Buffer
	var progressed []string
	exp, err := svc.Export(context.Background(), &out, time.Time{}, func(e delivery.Entry) {
		progressed = append(progressed, e.Name)
	})
	require.NoError(t, err)
	assert.Equal(t, "Exportacion_Responsables_20251105.zip", exp.Name)
	assert.Equal(t, []string{"Alice.xlsx", "Bob.xlsx"}, progressed)

	zr, err := zip.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	alice, err := workbook.Read(rc, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 2, alice.Len())
	assert.Equal(t, len(partition.ExportColumns)+1, alice.Width())
	assert.Equal(t, table.IntValue(20), alice.Get(0, "VALUE_TOTAL"))
	assert.True(t, alice.Get(1, "VALUE_TOTAL").IsNull())

	sum := exp.Summary("/tmp/" + exp.Name)
	assert.Len(t, sum.Owners, 2)
	assert.Equal(t, 3, sum.CombinedRows)
	assert.NotEmpty(t, sum.MissingColumns)
}

func TestUpdate_MissingOrders(t *testing.T) {
	mem := store.NewMemory()
	svc := newService(mem)

	data := archive(t, map[string]*table.Table{
		"PRECIOS.xlsx": build(t, []string{"LPROD", "VALOR"}, []interface{}{"P1", 1}),
	})
	_, err := update(t, svc, data)
	assert.ErrorIs(t, err, pipeline.ErrMissingOrders)

	_, err = svc.Dataset(context.Background())
	assert.ErrorIs(t, err, store.ErrNoDataset, "nothing is persisted")

	runs, err := svc.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "ORDERS")
	assert.Equal(t, []string{"PRICING"}, runs[0].Sources)
}

func TestUpdate_InvalidArchive(t *testing.T) {
	svc := newService(store.NewMemory())

	_, err := update(t, svc, []byte("not a zip"))
	assert.ErrorIs(t, err, delivery.ErrInvalidArchive)

	runs, _ := svc.History(context.Background(), 0)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunFailed, runs[0].Status)
}

func TestUpdate_KeepsPreviousDatasetOnFailure(t *testing.T) {
	svc := newService(store.NewMemory())

	first, err := update(t, svc, fullUpload(t))
	require.NoError(t, err)

	_, err = update(t, svc, []byte("garbage"))
	require.Error(t, err)

	stored, err := svc.Dataset(context.Background())
	require.NoError(t, err)
	assert.Same(t, first.Combined, stored)
}

func TestExport_NotApplicable(t *testing.T) {
	svc := newService(store.NewMemory())

	data := archive(t, map[string]*table.Table{
		"ORDENES.xlsx": build(t, []string{"LPROD", "LQORD"}, []interface{}{"P1", 1}),
	})
	_, err := update(t, svc, data)
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = svc.Export(context.Background(), &out, day, nil)
	assert.ErrorIs(t, err, ErrNotApplicable)
	assert.Zero(t, out.Len(), "nothing written when partitioning is not applicable")
}

func TestExport_NoDataset(t *testing.T) {
	svc := newService(store.NewMemory())

	_, err := svc.Export(context.Background(), &bytes.Buffer{}, day, nil)
	assert.ErrorIs(t, err, store.ErrNoDataset)
}

func TestHistory_Unsupported(t *testing.T) {
	// Only the Dataset methods are visible through the wrapper
	svc := newService(struct{ store.Dataset }{store.NewMemory()})

	_, err := update(t, svc, fullUpload(t))
	require.NoError(t, err)

	_, err = svc.History(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoHistory)
	assert.True(t, errors.Is(err, util.ErrNotFound))
}

func TestUpdate_Concurrent(t *testing.T) {
	svc := newService(store.NewMemory())
	data := fullUpload(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Update(context.Background(), bytes.NewReader(data), int64(len(data)), UpdateOptions{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	runs, err := svc.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 8)
}

func TestUpdate_SQLiteRoundTrip(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "recon.db"))
	require.NoError(t, err)
	defer db.Close()

	svc := newService(db)
	data := fullUpload(t)
	_, err = svc.Update(context.Background(), bytes.NewReader(data), int64(len(data)), UpdateOptions{
		ProcessedOn: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	exp, err := svc.Export(context.Background(), &bytes.Buffer{}, day, nil)
	require.NoError(t, err)
	require.Len(t, exp.Partition.Exports, 2)
	alice := exp.Partition.Exports[0].Table
	assert.Equal(t, "Alice", exp.Partition.Exports[0].Owner)
	assert.Equal(t, table.IntValue(14), alice.Get(0, "CONTROL_DIAS"))
	assert.Equal(t, table.IntValue(20), alice.Get(0, "VALUE_TOTAL"))

	runs, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "2025-11-01", runs[0].ProcessedOn.Format("2006-01-02"))
}

func TestUpdateResult_Summary(t *testing.T) {
	svc := newService(store.NewMemory())
	res, err := update(t, svc, fullUpload(t))
	require.NoError(t, err)

	sum := res.Summary()
	assert.Equal(t, res.RunID, sum.RunID)
	assert.Equal(t, 3, sum.CombinedRows)
	require.Len(t, sum.Sources, 5)
	assert.True(t, sum.Sources[1].Skipped)
	assert.Equal(t, 2, sum.Sources[3].Matched)
}
