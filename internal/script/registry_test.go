package script

import (
	"testing"

	"github.com/haasonsaas/neobot/pkg/models"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := &Instance{ID: "a", Origin: models.Origin{ChannelID: "c1", MessageID: "m1"}}
	b := &Instance{ID: "b", Origin: models.Origin{ChannelID: "c1", MessageID: "m2"}}
	a2 := &Instance{ID: "a2", Origin: a.Origin}

	r.Put(a)
	r.Put(b)
	r.Put(a2)
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (one instance per origin)", r.Len())
	}
	if got, _ := r.Get(a.Origin); got.ID != "a2" {
		t.Errorf("Get() = %s, want a2", got.ID)
	}
	if len(r.Partition("c1")) != 2 || r.Partition("c2") != nil {
		t.Error("partition contents mismatch")
	}

	if _, ok := r.Delete(models.Origin{ChannelID: "c2", MessageID: "m1"}); ok {
		t.Error("Delete() of unknown origin reported success")
	}
	r.Delete(a.Origin)
	r.Delete(b.Origin)
	if r.Len() != 0 {
		t.Errorf("Len() = %d after deletes", r.Len())
	}
	if _, ok := r.partitions["c1"]; ok {
		t.Error("empty partition should be dropped")
	}
}
