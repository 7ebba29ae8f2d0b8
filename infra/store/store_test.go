package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ers/core/model"
	corestore "github.com/kilianp07/ers/core/store"
)

func backends(t *testing.T) map[string]corestore.Store {
	t.Helper()
	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]corestore.Store{
		"memory": NewMemoryStore(),
		"sqlite": sq,
	}
}

func seed(t *testing.T, s corestore.Store) {
	t.Helper()
	err := s.Update(context.Background(), func(tx corestore.Tx) error {
		for _, id := range []string{"AMB003", "AMB001", "AMB002"} {
			if err := tx.PutVehicle(model.Vehicle{ID: id, Status: model.StatusAvailable, Location: model.Point{Lat: 22.3, Lng: 73.18}}); err != nil {
				return err
			}
		}
		return tx.PutHospital(model.Hospital{ID: "HOSP001", Name: "CityCare", Load: 60, Specialties: []string{"cardiology"}})
	})
	require.NoError(t, err)
}

func TestStoreCreationOrder(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)
			err := s.View(context.Background(), func(r corestore.Reader) error {
				vs, err := r.Vehicles(corestore.VehicleFilter{})
				require.NoError(t, err)
				require.Len(t, vs, 3)
				assert.Equal(t, []string{"AMB003", "AMB001", "AMB002"}, []string{vs[0].ID, vs[1].ID, vs[2].ID})
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStoreRollbackOnError(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)
			boom := errors.New("boom")
			err := s.Update(context.Background(), func(tx corestore.Tx) error {
				v, err := tx.Vehicle("AMB001")
				if err != nil {
					return err
				}
				v.Status = model.StatusDispatched
				if err := tx.PutVehicle(v); err != nil {
					return err
				}
				if _, _, err := tx.AdjustHospitalLoad("HOSP001", 1, 100); err != nil {
					return err
				}
				// reads inside the transaction see staged writes
				got, err := tx.Vehicle("AMB001")
				if err != nil || got.Status != model.StatusDispatched {
					t.Fatalf("staged write not visible: %v", err)
				}
				return boom
			})
			require.ErrorIs(t, err, boom)
			err = s.View(context.Background(), func(r corestore.Reader) error {
				v, err := r.Vehicle("AMB001")
				require.NoError(t, err)
				assert.Equal(t, model.StatusAvailable, v.Status)
				h, err := r.Hospital("HOSP001")
				require.NoError(t, err)
				assert.Equal(t, 60, h.Load)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStoreAdjustHospitalLoadClamps(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)
			var applied, load int
			err := s.Update(context.Background(), func(tx corestore.Tx) error {
				var err error
				applied, load, err = tx.AdjustHospitalLoad("HOSP001", 55, 100)
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, 40, applied)
			assert.Equal(t, 100, load)

			err = s.Update(context.Background(), func(tx corestore.Tx) error {
				var err error
				applied, load, err = tx.AdjustHospitalLoad("HOSP001", -250, 100)
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, -100, applied)
			assert.Equal(t, 0, load)

			err = s.Update(context.Background(), func(tx corestore.Tx) error {
				_, _, err := tx.AdjustHospitalLoad("nope", 1, 100)
				return err
			})
			assert.ErrorIs(t, err, model.ErrHospitalNotFound)
		})
	}
}

func TestStoreFiltersAndDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := s.Update(ctx, func(tx corestore.Tx) error {
				for id, st := range map[string]model.IncidentStatus{
					"a": model.IncidentPending,
					"b": model.IncidentResolved,
					"c": model.IncidentTransporting,
				} {
					if err := tx.PutIncident(model.Incident{ID: id, Status: st}); err != nil {
						return err
					}
				}
				return nil
			})
			require.NoError(t, err)

			var n int
			err = s.Update(ctx, func(tx corestore.Tx) error {
				var err error
				n, err = tx.DeleteIncidents(corestore.IncidentFilter{Statuses: []model.IncidentStatus{model.IncidentPending, model.IncidentResolved}})
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			err = s.View(ctx, func(r corestore.Reader) error {
				left, err := r.Incidents(corestore.IncidentFilter{})
				require.NoError(t, err)
				require.Len(t, left, 1)
				assert.Equal(t, "c", left[0].ID)
				_, err = r.Incident("a")
				assert.Equal(t, model.KindNotFound, model.KindOf(err))
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStoreRoundTripsDestination(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			eta := 120.0
			d := model.ToIncident(model.Point{Lat: 22.3, Lng: 73.18}, "HOSP001", model.Point{Lat: 22.31, Lng: 73.2}, 1)
			d.ETASeconds = &eta
			v := model.Vehicle{ID: "AMB010", Status: model.StatusDispatched, CurrentIncident: "i1", Destination: &d}
			require.NoError(t, s.Update(context.Background(), func(tx corestore.Tx) error { return tx.PutVehicle(v) }))
			// mutating the caller's copy must not leak into the store
			*d.ETASeconds = 1

			err := s.View(context.Background(), func(r corestore.Reader) error {
				got, err := r.Vehicle("AMB010")
				require.NoError(t, err)
				require.NotNil(t, got.Destination)
				assert.Equal(t, "HOSP001", got.Destination.HospitalID)
				require.NotNil(t, got.Destination.ETASeconds)
				assert.Equal(t, 120.0, *got.Destination.ETASeconds)
				active, err := r.Vehicles(corestore.VehicleFilter{Statuses: []model.VehicleStatus{model.StatusDispatched}})
				require.NoError(t, err)
				assert.Len(t, active, 1)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMemoryStore().Update(ctx, func(corestore.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
