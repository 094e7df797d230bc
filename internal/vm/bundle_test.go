package vm

import (
	"bytes"
	"path/filepath"
	"testing"
)

const bundleFixture = `
دالة رحب(اسم, تحية = "اهلا") { ارجع تحية + " " + اسم; }
صنف عداد {
	انشئ() { هذا.عدد = 0; }
	زد() { هذا.عدد = هذا.عدد + 1; ارجع هذا.عدد; }
}
دع ع = جديد عداد();
ع.زد();
ع.زد();
اطبع(رحب("سالم"));
اطبع(ع.عدد);
اطبع(3.25 * 2);
`

func TestBundleRoundTrip(t *testing.T) {
	chunk := compileSource(t, bundleFixture)
	bundle := NewBundle(chunk)

	data, err := bundle.Encode()
	if err != nil {
		t.Fatalf("encode: %s", err)
	}
	decoded, err := DecodeBundle(data)
	if err != nil {
		t.Fatalf("decode: %s", err)
	}

	if decoded.BuildID != bundle.BuildID {
		t.Fatalf("build ID mismatch: %s vs %s", decoded.BuildID, bundle.BuildID)
	}
	assertChunksEqual(t, bundle.Main, decoded.Main)

	// Both chunks must behave identically.
	machine1, out1 := newTestVM()
	if err := machine1.Run(bundle.Main); err != nil {
		t.Fatalf("original run: %s", err)
	}
	machine2, out2 := newTestVM()
	if err := machine2.Run(decoded.Main); err != nil {
		t.Fatalf("decoded run: %s", err)
	}
	if out1.String() != out2.String() {
		t.Fatalf("output mismatch:\noriginal: %q\n decoded: %q", out1.String(), out2.String())
	}
	if want := "اهلا سالم\n2\n6.5\n"; out1.String() != want {
		t.Fatalf("want %q, got %q", want, out1.String())
	}
}

func assertChunksEqual(t *testing.T, want, got *Chunk) {
	t.Helper()
	if !bytes.Equal(want.Code, got.Code) {
		t.Fatalf("code bytes differ")
	}
	if len(want.Lines) != len(got.Lines) {
		t.Fatalf("line tables differ in length: %d vs %d", len(want.Lines), len(got.Lines))
	}
	for i := range want.Lines {
		if want.Lines[i] != got.Lines[i] {
			t.Fatalf("line table differs at byte %d: %d vs %d", i, want.Lines[i], got.Lines[i])
		}
	}
	if len(want.Constants) != len(got.Constants) {
		t.Fatalf("constant pools differ in length: %d vs %d", len(want.Constants), len(got.Constants))
	}
	for i := range want.Constants {
		w, g := want.Constants[i], got.Constants[i]
		wf, wIsFn := w.Obj.(*CompiledFunction)
		gf, gIsFn := g.Obj.(*CompiledFunction)
		if wIsFn != gIsFn {
			t.Fatalf("constant %d kind differs", i)
		}
		if wIsFn {
			if wf.Arity != gf.Arity || wf.Name != gf.Name || wf.UpvalueCount != gf.UpvalueCount ||
				wf.LocalCount != gf.LocalCount || wf.IsInit != gf.IsInit || len(wf.Params) != len(gf.Params) {
				t.Fatalf("function proto %d differs: %+v vs %+v", i, wf, gf)
			}
			for p := range wf.Params {
				if wf.Params[p] != gf.Params[p] {
					t.Fatalf("function proto %d param %d differs", i, p)
				}
			}
			assertChunksEqual(t, wf.Chunk, gf.Chunk)
			continue
		}
		if !w.Equals(g) {
			t.Fatalf("constant %d differs: %s vs %s", i, w.Inspect(), g.Inspect())
		}
	}
}

func TestBundleFileRoundTrip(t *testing.T) {
	chunk := compileSource(t, `دع س = 1;`)
	bundle := NewBundle(chunk)
	path := filepath.Join(t.TempDir(), "out.skpb")
	if err := bundle.WriteFile(path); err != nil {
		t.Fatalf("write: %s", err)
	}
	loaded, err := ReadBundleFile(path)
	if err != nil {
		t.Fatalf("read: %s", err)
	}
	if loaded.BuildID != bundle.BuildID {
		t.Fatalf("build ID mismatch after file round trip")
	}
}

func TestBundleHeaderLayout(t *testing.T) {
	bundle := NewBundle(compileSource(t, `دع س = 1;`))
	data, err := bundle.Encode()
	if err != nil {
		t.Fatalf("encode: %s", err)
	}
	if !bytes.HasPrefix(data, []byte("SKPB")) {
		t.Fatalf("bundle must start with the SKPB magic, got %q", data[:4])
	}
	if data[4] != 1 || data[5] != 0 || data[6] != 0 {
		t.Fatalf("want version 1.0.0, got %d.%d.%d", data[4], data[5], data[6])
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	if _, err := DecodeBundle([]byte("NOPE\x01\x00\x00")); err == nil {
		t.Fatalf("expected bad-magic error")
	}
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	bundle := NewBundle(compileSource(t, `دع س = 1 + 2;`))
	data, err := bundle.Encode()
	if err != nil {
		t.Fatalf("encode: %s", err)
	}
	for _, cut := range []int{5, 10, 20, len(data) - 1} {
		if _, err := DecodeBundle(data[:cut]); err == nil {
			t.Errorf("truncation at %d bytes should fail to decode", cut)
		}
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	bundle := NewBundle(compileSource(t, `دع س = 1;`))
	data, _ := bundle.Encode()
	data = append([]byte{}, data...)
	data[4] = 9
	if _, err := DecodeBundle(data); err == nil {
		t.Fatalf("expected version error")
	}
}
