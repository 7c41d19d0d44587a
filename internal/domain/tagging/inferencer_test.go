package tagging

import (
	"reflect"
	"testing"

	"github.com/aoa-dev/aoa/internal/domain/entity"
)

func TestInfer_ReadAuthFile(t *testing.T) {
	lib := entity.NewPatternLibrary(map[string]map[string][]string{
		"authentication": {"auth": {"auth", "login"}},
	})
	rec := entity.IntentRecord{
		ToolName: "Read",
		Files:    []string{"/repo/svc/auth.py"},
	}

	tags := Infer(rec, lib, nil)

	if !contains(tags, "#reading") {
		t.Errorf("expected #reading in %v", tags)
	}
	if !contains(tags, "#authentication") {
		t.Errorf("expected #authentication in %v", tags)
	}
}

func TestInfer_Deterministic(t *testing.T) {
	lib := entity.NewPatternLibrary(map[string]map[string][]string{
		"cache": {"cache": {"cache", "lru"}},
	})
	rec := entity.IntentRecord{
		ToolName: "Edit",
		Files:    []string{"/repo/cache/lru.go"},
	}

	a := Infer(rec, lib, nil)
	b := Infer(rec, lib, nil)

	if !reflect.DeepEqual(a, b) {
		t.Errorf("expected deterministic tags, got %v vs %v", a, b)
	}
}

func TestInfer_FallbackWhenOnlyToolAction(t *testing.T) {
	lib := entity.NewPatternLibrary(nil)
	rec := entity.IntentRecord{
		ToolName: "Edit",
		Files:    []string{"/repo/db/migrations.sql"},
	}

	tags := Infer(rec, lib, nil)

	if !contains(tags, "#database") {
		t.Errorf("expected fallback #database tag, got %v", tags)
	}
}

func TestInfer_MergesSearchTags(t *testing.T) {
	lib := entity.NewPatternLibrary(nil)
	rec := entity.IntentRecord{ToolName: "Bash"}

	tags := Infer(rec, lib, []string{"#usersession"})

	if !contains(tags, "#usersession") {
		t.Errorf("expected merged search tag, got %v", tags)
	}
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
