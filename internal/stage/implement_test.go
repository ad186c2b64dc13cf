package stage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ldi/forge/internal/logging"
	"github.com/ldi/forge/pkg/models"
)

const samplePatch = `diff --git a/internal/fetch/retry.go b/internal/fetch/retry.go
new file mode 100644
--- /dev/null
+++ b/internal/fetch/retry.go
@@ -0,0 +1,3 @@
+package fetch
+
+func backoff() {}
`

func planInput() *models.Artifact {
	return planArtifact("task-1", FallbackPlan("add retry logic"))
}

func TestImplementerProducesPatch(t *testing.T) {
	fc := &fakeCompleter{out: samplePatch}
	im := NewImplementer(fc, logging.Discard())

	art, err := im.Run(context.Background(), testContext(), planInput())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if art.Stage != models.StageImplement {
		t.Errorf("stage = %v", art.Stage)
	}
	if art.Patch != samplePatch {
		t.Error("patch text altered")
	}
	if !strings.Contains(fc.lastPrompt, "TECHNICAL SPECIFICATION") {
		t.Error("prompt missing plan text")
	}
}

func TestImplementerEmptyOutput(t *testing.T) {
	im := NewImplementer(&fakeCompleter{out: "  \n\t "}, logging.Discard())

	_, err := im.Run(context.Background(), testContext(), planInput())
	if !errors.Is(err, ErrEmptyPatch) {
		t.Errorf("err = %v, want ErrEmptyPatch", err)
	}
}

func TestImplementerNonDiffOutput(t *testing.T) {
	im := NewImplementer(&fakeCompleter{out: "Sure! Here is the patch you asked for."}, logging.Discard())

	_, err := im.Run(context.Background(), testContext(), planInput())
	if !errors.Is(err, ErrInvalidPatch) {
		t.Errorf("err = %v, want ErrInvalidPatch", err)
	}
}

func TestImplementerCompleterError(t *testing.T) {
	im := NewImplementer(&fakeCompleter{err: errors.New("timeout")}, logging.Discard())

	if _, err := im.Run(context.Background(), testContext(), planInput()); err == nil {
		t.Fatal("expected error from failing completer")
	}
}

func TestImplementerRequiresPlan(t *testing.T) {
	im := NewImplementer(&fakeCompleter{out: samplePatch}, logging.Discard())

	if _, err := im.Run(context.Background(), testContext(), nil); err == nil {
		t.Fatal("expected error without plan artifact")
	}
}

func TestImplementerRequiresCompleter(t *testing.T) {
	im := NewImplementer(nil, logging.Discard())

	if _, err := im.Run(context.Background(), testContext(), planInput()); err == nil {
		t.Fatal("expected error without completer")
	}
}
