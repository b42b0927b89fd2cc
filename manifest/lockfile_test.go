package manifest

import "testing"

const sampleLockfile = `
[[packages]]
id = "good/package@root"
version = "1.0.5"

[[packages.dependencies]]
id = "terminator/one@index+tar+https://elba.io/pkg"
version = "0.1.4"

[[packages]]
id = "terminator/one@index+tar+https://elba.io/pkg"
version = "0.1.4"
`

func TestParseLockfile(t *testing.T) {
	l, err := ParseLockfile(sampleLockfile)
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Packages) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(l.Packages))
	}
}

func TestLockfileGraphRoundTrip(t *testing.T) {
	l, err := ParseLockfile(sampleLockfile)
	if err != nil {
		t.Fatal(err)
	}
	g, err := l.ToGraph()
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 2 {
		t.Fatalf("expected 2 nodes, got %d", g.Len())
	}

	l2, err := FromGraph(g)
	if err != nil {
		t.Fatal(err)
	}
	if len(l2.Packages) != 2 {
		t.Fatalf("expected round-trip to preserve 2 packages, got %d", len(l2.Packages))
	}
}
