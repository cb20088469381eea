package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/storage"
)

func TestEntityPutAndGet(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	entity := &core.Entity{
		Name:       "Transformer",
		Type:       core.EntityTypeMethod,
		Provenance: []core.ID{core.ID(1)},
		Confidence: 0.9,
	}
	if err := repos.Entities.Put(ctx, entity); err != nil {
		t.Fatalf("Failed to put entity: %v", err)
	}
	if entity.Id == 0 {
		t.Fatal("Expected non-zero ID")
	}

	retrieved, err := repos.Entities.GetEntity(ctx, entity.Id)
	if err != nil {
		t.Fatalf("Failed to get entity: %v", err)
	}
	if retrieved.Name != "Transformer" {
		t.Fatalf("Unexpected name: %s", retrieved.Name)
	}

	if _, err := repos.Entities.GetEntity(ctx, core.ID(999)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestEntityGetByName(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	entity := &core.Entity{
		Name:       "Transformer",
		Type:       core.EntityTypeMethod,
		Aliases:    []string{"the Transformer"},
		Confidence: 0.9,
	}
	if err := repos.Entities.Put(ctx, entity); err != nil {
		t.Fatalf("Failed to put entity: %v", err)
	}

	// Lookup by normalized canonical name
	found, err := repos.Entities.GetByName(ctx, "transformer", core.EntityTypeMethod)
	if err != nil {
		t.Fatalf("Failed to get by name: %v", err)
	}
	if found.Id != entity.Id {
		t.Fatalf("Expected ID %d, got %d", entity.Id, found.Id)
	}

	// Lookup by normalized alias
	found, err = repos.Entities.GetByName(ctx, "the transformer", core.EntityTypeMethod)
	if err != nil {
		t.Fatalf("Failed to get by alias: %v", err)
	}
	if found.Id != entity.Id {
		t.Fatalf("Expected ID %d, got %d", entity.Id, found.Id)
	}

	// Same name under a different type is a miss
	if _, err := repos.Entities.GetByName(ctx, "transformer", core.EntityTypePerson); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestEntityAliasIndexMaintenance(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	entity := &core.Entity{
		Name:    "BERT",
		Type:    core.EntityTypeMethod,
		Aliases: []string{"Bidirectional Encoder Representations"},
	}
	if err := repos.Entities.Put(ctx, entity); err != nil {
		t.Fatalf("Failed to put entity: %v", err)
	}

	// Replace the alias set and put again
	entity.Aliases = []string{"BERT model"}
	if err := repos.Entities.Put(ctx, entity); err != nil {
		t.Fatalf("Failed to update entity: %v", err)
	}

	if _, err := repos.Entities.GetByName(ctx, "bidirectional encoder representations", core.EntityTypeMethod); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected stale alias to be removed, got %v", err)
	}
	found, err := repos.Entities.GetByName(ctx, "bert model", core.EntityTypeMethod)
	if err != nil {
		t.Fatalf("Failed to get by new alias: %v", err)
	}
	if found.Id != entity.Id {
		t.Fatalf("Expected ID %d, got %d", entity.Id, found.Id)
	}
}

func TestEntityListByType(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	for _, e := range []*core.Entity{
		{Name: "Transformer", Type: core.EntityTypeMethod},
		{Name: "BERT", Type: core.EntityTypeMethod},
		{Name: "Google", Type: core.EntityTypeOrganization},
	} {
		if err := repos.Entities.Put(ctx, e); err != nil {
			t.Fatalf("Failed to put entity: %v", err)
		}
	}

	methods, err := repos.Entities.ListByType(ctx, core.EntityTypeMethod)
	if err != nil {
		t.Fatalf("Failed to list by type: %v", err)
	}
	if len(methods) != 2 {
		t.Fatalf("Expected 2 methods, got %d", len(methods))
	}

	orgs, err := repos.Entities.ListByType(ctx, core.EntityTypeOrganization)
	if err != nil {
		t.Fatalf("Failed to list by type: %v", err)
	}
	if len(orgs) != 1 {
		t.Fatalf("Expected 1 organization, got %d", len(orgs))
	}
}

func TestEntityDelete(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	entity := &core.Entity{Name: "Transformer", Type: core.EntityTypeMethod, Aliases: []string{"TF"}}
	if err := repos.Entities.Put(ctx, entity); err != nil {
		t.Fatalf("Failed to put entity: %v", err)
	}

	if err := repos.Entities.DeleteEntities(ctx, entity.Id); err != nil {
		t.Fatalf("Failed to delete entity: %v", err)
	}

	if _, err := repos.Entities.GetEntity(ctx, entity.Id); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if _, err := repos.Entities.GetByName(ctx, "transformer", core.EntityTypeMethod); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected name index entry removed, got %v", err)
	}
	if _, err := repos.Entities.GetByName(ctx, "tf", core.EntityTypeMethod); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected alias index entry removed, got %v", err)
	}

	if err := repos.Entities.DeleteEntities(ctx, core.ID(404)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing entity, got %v", err)
	}
}

func TestIterateEntities(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		if err := repos.Entities.Put(ctx, &core.Entity{Name: name, Type: core.EntityTypeConcept}); err != nil {
			t.Fatalf("Failed to put entity: %v", err)
		}
	}

	var seen []core.ID
	err := repos.Entities.IterateEntities(ctx, 0, func(entity *core.Entity) error {
		seen = append(seen, entity.Id)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to iterate: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("Expected 3 entities, got %d", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("Expected ascending id order, got %v", seen)
		}
	}
}
