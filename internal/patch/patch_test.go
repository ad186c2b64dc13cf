package patch

import "testing"

const samplePatch = `diff --git a/order_queue.cpp b/order_queue.cpp
index abc1234..def5678 100644
--- a/order_queue.cpp
+++ b/order_queue.cpp
@@ -10,6 +10,9 @@ void OrderQueue::dispatch() {
     Order* next = queue.front();
+    if (next == nullptr) {
+        return;
+    }
     next->execute();
     queue.pop();
 }
`

func TestIsValid(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		valid bool
	}{
		{"git header", "diff --git a/x b/x\n--- a/x\n+++ b/x\n", true},
		{"index header", "Index: src/main.go\n", true},
		{"minus header", "--- a/x\n+++ b/x\n", true},
		{"plus header", "+++ b/x\n", true},
		{"leading whitespace", "\n\n  diff --git a/x b/x\n", true},
		{"empty", "", false},
		{"whitespace only", "   \n\t", false},
		{"prose", "Here is the patch you asked for:", false},
		{"markdown fence", "```diff\ndiff --git a/x b/x\n```", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValid(tc.text); got != tc.valid {
				t.Errorf("IsValid(%q) = %v, want %v", tc.text, got, tc.valid)
			}
		})
	}
}

func TestStat(t *testing.T) {
	files := Stat(samplePatch)
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %v", files)
	}
	if files[0] != "order_queue.cpp" {
		t.Errorf("expected order_queue.cpp, got %q", files[0])
	}
}

func TestStatUnparseable(t *testing.T) {
	if files := Stat("not a diff at all"); len(files) != 0 {
		t.Errorf("expected empty stat for garbage input, got %v", files)
	}
}
