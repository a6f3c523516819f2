package intake

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/triagex/platform/pkg/common/logger"
	"github.com/triagex/platform/pkg/common/models"
	"github.com/triagex/platform/pkg/normalizer"
)

func TestMain(m *testing.M) {
	logger.Silence()
	os.Exit(m.Run())
}

type publishedEvent struct {
	Type string
	Key  string
	Data map[string]interface{}
}

type fakePublisher struct {
	events []publishedEvent
	err    error
}

func (f *fakePublisher) PublishEvent(_ context.Context, eventType, key string, data map[string]interface{}) error {
	f.events = append(f.events, publishedEvent{Type: eventType, Key: key, Data: data})
	return f.err
}

type fakeCache struct {
	latest  map[int64]models.VitalSign
	evicted []int64
	err     error
}

func newFakeCache() *fakeCache { return &fakeCache{latest: map[int64]models.VitalSign{}} }

func (f *fakeCache) PutLatest(_ context.Context, v models.VitalSign) error {
	if f.err != nil {
		return f.err
	}
	f.latest[v.PatientID] = v
	return nil
}

func (f *fakeCache) GetLatest(_ context.Context, id int64) (*models.VitalSign, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.latest[id]
	if !ok {
		return nil, errors.New("miss")
	}
	return &v, nil
}

func (f *fakeCache) Evict(_ context.Context, ids ...int64) error {
	f.evicted = append(f.evicted, ids...)
	for _, id := range ids {
		delete(f.latest, id)
	}
	return nil
}

func fields(t *testing.T, raw string) Fields {
	t.Helper()
	var f Fields
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	return f
}

func newTestService() (*Service, *memStore, *fakePublisher, *fakeCache) {
	store := newMemStore()
	pub := &fakePublisher{}
	cache := newFakeCache()
	svc := NewService(store, pub, cache)
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, store, pub, cache
}

func TestCreatePatientRequiresExistingSite(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.CreatePatient(context.Background(), fields(t, `{"site":9,"name":"A"}`))
	if !normalizer.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreatePatientNormalizesFields(t *testing.T) {
	svc, _, pub, _ := newTestService()
	ctx := context.Background()
	site, err := svc.CreateSite(ctx, fields(t, `{"name":"Site A"}`))
	if err != nil {
		t.Fatalf("create site: %v", err)
	}

	patient, err := svc.CreatePatient(ctx, fields(t, `{"site":"1","name":"Jane","age":"0","gender":null,"visible_injuries":"true"}`))
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	if patient.SiteID != site.ID || patient.Age != nil || patient.Gender != "" || !patient.VisibleInjuries {
		t.Fatalf("unexpected patient: %+v", patient)
	}
	if patient.TriageStatus != defaultTriageStatus {
		t.Fatalf("expected default triage status, got %q", patient.TriageStatus)
	}
	if got := patient.Injuries(); len(got) != 0 {
		t.Fatalf("expected empty injuries, got %v", got)
	}
	if len(pub.events) != 2 || pub.events[1].Type != models.EventPatientCreated {
		t.Fatalf("unexpected events: %+v", pub.events)
	}
	if pub.events[1].Data["site_id"] != site.ID {
		t.Fatalf("event missing site id: %+v", pub.events[1].Data)
	}

	_, err = svc.CreatePatient(ctx, fields(t, `{"site":1,"name":"Old","age":151}`))
	if !errors.Is(err, normalizer.ErrAgeOutOfRange) {
		t.Fatalf("expected age out of range, got %v", err)
	}
}

func TestPatchPatientKeepsUntouchedFields(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.CreateSite(ctx, fields(t, `{"name":"Site A"}`)); err != nil {
		t.Fatal(err)
	}
	p, err := svc.CreatePatient(ctx, fields(t, `{"site":1,"name":"Jane","age":30,"selected_injuries":["head"]}`))
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.UpdatePatient(ctx, p.ID, fields(t, `{"gender":"Female"}`), true)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if updated.Name != "Jane" || updated.Age == nil || *updated.Age != 30 || updated.Gender != "Female" {
		t.Fatalf("patch changed untouched fields: %+v", updated)
	}
	if got := updated.Injuries(); len(got) != 1 || got[0] != "head" {
		t.Fatalf("injuries lost: %v", got)
	}

	replaced, err := svc.UpdatePatient(ctx, p.ID, fields(t, `{"site":1,"name":"Jane"}`), false)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if replaced.Age != nil || replaced.Gender != "" {
		t.Fatalf("put must reset absent fields: %+v", replaced)
	}
}

func TestRecordVitalCachesAndOrders(t *testing.T) {
	svc, _, _, cache := newTestService()
	ctx := context.Background()
	if _, err := svc.CreateSite(ctx, fields(t, `{"name":"Site A"}`)); err != nil {
		t.Fatal(err)
	}
	p, err := svc.CreatePatient(ctx, fields(t, `{"site":1,"name":"Jane"}`))
	if err != nil {
		t.Fatal(err)
	}

	for _, hr := range []string{"90", "100", "110"} {
		if _, err := svc.RecordVital(ctx, fields(t, `{"patient":`+"2"+`,"heart_rate":`+hr+`}`)); err != nil {
			t.Fatalf("record vital: %v", err)
		}
	}
	vitals, err := svc.ListVitals(ctx, &p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(vitals) != 3 || *vitals[0].HeartRate != 90 || *vitals[2].HeartRate != 110 {
		t.Fatalf("vitals not ordered oldest first: %+v", vitals)
	}
	if vitals[0].Source != models.DefaultVitalSource {
		t.Fatalf("expected default source, got %q", vitals[0].Source)
	}
	if *cache.latest[p.ID].HeartRate != 110 {
		t.Fatalf("cache not holding newest reading")
	}

	latest, err := svc.LatestVital(ctx, p.ID)
	if err != nil || *latest.HeartRate != 110 {
		t.Fatalf("latest vital: %+v %v", latest, err)
	}

	_, err = svc.RecordVital(ctx, fields(t, `{"patient":99,"heart_rate":80}`))
	if !normalizer.IsValidationError(err) {
		t.Fatalf("expected validation error for unknown patient, got %v", err)
	}
}

func TestLatestVitalFallsBackToStore(t *testing.T) {
	svc, _, _, cache := newTestService()
	ctx := context.Background()
	if _, err := svc.CreateSite(ctx, fields(t, `{"name":"Site A"}`)); err != nil {
		t.Fatal(err)
	}
	p, err := svc.CreatePatient(ctx, fields(t, `{"site":1,"name":"Jane"}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.LatestVital(ctx, p.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found without readings, got %v", err)
	}
	if _, err := svc.RecordVital(ctx, fields(t, `{"patient":2,"bp_systolic":"120"}`)); err != nil {
		t.Fatal(err)
	}
	cache.err = errors.New("redis down")
	latest, err := svc.LatestVital(ctx, p.ID)
	if err != nil || *latest.BPSystolic != 120 {
		t.Fatalf("expected store fallback, got %+v %v", latest, err)
	}
}

func TestDeleteSiteCascades(t *testing.T) {
	svc, store, _, cache := newTestService()
	ctx := context.Background()
	site, _ := svc.CreateSite(ctx, fields(t, `{"name":"Site A"}`))
	other, _ := svc.CreateSite(ctx, fields(t, `{"name":"Site B"}`))
	p1, _ := svc.CreatePatient(ctx, fields(t, `{"site":1,"name":"One"}`))
	p2, _ := svc.CreatePatient(ctx, fields(t, `{"site":2,"name":"Two"}`))
	if _, err := svc.RecordVital(ctx, Fields{"patient": json.RawMessage("3"), "heart_rate": json.RawMessage("80")}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordAction(ctx, fields(t, `{"patient":3,"action":"Oxygen"}`)); err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteSite(ctx, site.ID); err != nil {
		t.Fatalf("delete site: %v", err)
	}
	if _, err := store.GetPatient(ctx, p1.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("patient survived site delete")
	}
	if v, _ := store.ListVitals(ctx, &p1.ID); len(v) != 0 {
		t.Fatalf("vitals survived site delete")
	}
	if a, _ := store.ListActions(ctx, &p1.ID); len(a) != 0 {
		t.Fatalf("actions survived site delete")
	}
	if _, err := store.GetPatient(ctx, p2.ID); err != nil {
		t.Fatalf("other site's patient removed: %v", err)
	}
	if _, err := store.GetSite(ctx, other.ID); err != nil {
		t.Fatalf("other site removed: %v", err)
	}
	if len(cache.evicted) != 1 || cache.evicted[0] != p1.ID {
		t.Fatalf("expected cache eviction for %d, got %v", p1.ID, cache.evicted)
	}
}

func TestRecordActionDefaults(t *testing.T) {
	svc, _, pub, _ := newTestService()
	ctx := context.Background()
	svc.CreateSite(ctx, fields(t, `{"name":"Site A"}`))
	svc.CreatePatient(ctx, fields(t, `{"site":1,"name":"Jane"}`))

	if _, err := svc.RecordAction(ctx, fields(t, `{"patient":2}`)); !normalizer.IsValidationError(err) {
		t.Fatalf("expected action to be required, got %v", err)
	}
	pub.err = errors.New("broker down")
	action, err := svc.RecordAction(ctx, fields(t, `{"patient":2,"action":"IV access","details":null}`))
	if err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
	if action.Source != models.DefaultActionSource || action.Details != "" {
		t.Fatalf("unexpected action: %+v", action)
	}
}

func TestSetTriage(t *testing.T) {
	svc, _, pub, _ := newTestService()
	ctx := context.Background()
	svc.CreateSite(ctx, fields(t, `{"name":"Site A"}`))
	p, _ := svc.CreatePatient(ctx, fields(t, `{"site":1,"name":"Jane"}`))

	if _, err := svc.SetTriage(ctx, p.ID, "purple", "x", nil); !normalizer.IsValidationError(err) {
		t.Fatalf("expected invalid level, got %v", err)
	}
	updated, err := svc.SetTriage(ctx, p.ID, models.TriageRed, "Critical", map[string]interface{}{"score": 17})
	if err != nil {
		t.Fatal(err)
	}
	if updated.TriageLevel != models.TriageRed || updated.TriageStatus != "Critical" {
		t.Fatalf("unexpected patient: %+v", updated)
	}
	last := pub.events[len(pub.events)-1]
	if last.Type != models.EventTriageUpdated || last.Data["score"] != 17 {
		t.Fatalf("unexpected event: %+v", last)
	}
}

func TestUpdateSitePartialAndFull(t *testing.T) {
	svc, _, pub, _ := newTestService()
	ctx := context.Background()
	site, err := svc.CreateSite(ctx, fields(t, `{"name":"Highway 9","address":"Exit 12","latitude":12.5}`))
	if err != nil {
		t.Fatalf("create site: %v", err)
	}

	patched, err := svc.UpdateSite(ctx, site.ID, fields(t, `{"address":"Exit 14"}`), true)
	if err != nil {
		t.Fatalf("patch site: %v", err)
	}
	if patched.Name != "Highway 9" || patched.Address != "Exit 14" || patched.Latitude == nil || *patched.Latitude != 12.5 {
		t.Fatalf("patch changed untouched fields: %+v", patched)
	}
	if !patched.CreatedAt.Equal(site.CreatedAt) {
		t.Fatalf("created_at moved: %s vs %s", patched.CreatedAt, site.CreatedAt)
	}
	last := pub.events[len(pub.events)-1]
	if last.Type != models.EventSiteUpdated || last.Data["site_id"] != site.ID {
		t.Fatalf("unexpected event: %+v", last)
	}
	if _, ok := last.Data["patient_id"]; ok {
		t.Fatalf("site event must not carry patient_id: %+v", last.Data)
	}

	replaced, err := svc.UpdateSite(ctx, site.ID, fields(t, `{"name":"Highway 10"}`), false)
	if err != nil {
		t.Fatalf("put site: %v", err)
	}
	if replaced.Address != "" || replaced.Latitude != nil {
		t.Fatalf("full update must reset absent fields: %+v", replaced)
	}

	if _, err := svc.UpdateSite(ctx, site.ID, fields(t, `{"address":"x"}`), false); !normalizer.IsValidationError(err) {
		t.Fatalf("full update without name must fail validation, got %v", err)
	}
	if _, err := svc.UpdateSite(ctx, 99, fields(t, `{"name":"x"}`), true); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
