package source

import "testing"

func TestNormalizeFilename(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		root     string
		want     string
	}{
		{"inside root", "/home/dev/site/src/pages/index.tes", "/home/dev/site", "/src/pages/index.tes"},
		{"root with trailing slash", "/home/dev/site/src/Page.tes", "/home/dev/site/", "/src/Page.tes"},
		{"root as file url", "/home/dev/site/src/Page.tes", "file:///home/dev/site/", "/src/Page.tes"},
		{"backslashes", `C:\work\site\src\Card.tes`, `C:\work\site`, "/src/Card.tes"},
		{"windows file url", "C:/work/site/src/Card.tes", "file:///C:/work/site/", "/src/Card.tes"},
		{"sibling with shared prefix", "/home/dev/site2/src/Page.tes", "/home/dev/site", "/home/dev/site2/src/Page.tes"},
		{"outside root", "/opt/pkg/Button.tes", "/home/dev/site", "/opt/pkg/Button.tes"},
		{"virtual module", "virtual:tessera/island.tes", "/home/dev/site", "virtual:tessera/island.tes"},
		{"dot segments cleaned", "/home/dev/site/src/../src/./Page.tes", "/home/dev/site", "/src/Page.tes"},
		{"root slash", "/src/Page.tes", "/", "/src/Page.tes"},
		{"empty root", "/a/b.tes", "", "/a/b.tes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeFilename(tc.filename, tc.root); got != tc.want {
				t.Fatalf("NormalizeFilename(%q, %q) = %q, want %q", tc.filename, tc.root, got, tc.want)
			}
		})
	}
}

func TestNormalizeFilenameUnderRootHasOneLeadingSlash(t *testing.T) {
	root := "/srv/app"
	for _, f := range []string{"/srv/app/a.tes", "/srv/app//nested///b.tes", "/srv/app/x/y/z.tes"} {
		got := NormalizeFilename(f, root)
		if len(got) < 2 || got[0] != '/' || got[1] == '/' {
			t.Fatalf("%q: expected exactly one leading slash, got %q", f, got)
		}
		if len(got) >= len(root) && got[:len(root)] == root {
			t.Fatalf("%q: root prefix not stripped: %q", f, got)
		}
	}
}
