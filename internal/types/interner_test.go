package types

import (
	"sync"
	"testing"
	"time"

	"qualflow/internal/source"
)

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Void == NoTypeID || b.Object == NoTypeID || b.String == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	obj, _ := in.Lookup(b.Object)
	if obj.Kind != KindDeclared {
		t.Fatalf("expected declared kind, got %v", obj.Kind)
	}
	if Label(in, b.Int) != "int" || Label(in, b.String) != "String" {
		t.Fatalf("labels: %q %q", Label(in, b.Int), Label(in, b.String))
	}
}

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := NewInterner()
	list := in.RegisterClass("List", true)
	a := in.Intern(MakeDeclared(list, in.Builtins().String))
	b := in.Intern(MakeDeclared(list, in.Builtins().String))
	if a != b {
		t.Fatalf("declared types should be deduplicated")
	}
	arr1 := in.Intern(MakeArray(a))
	arr2 := in.Intern(MakeArray(b))
	if arr1 != arr2 {
		t.Fatalf("array types should be deduplicated")
	}
	if Label(in, arr1) != "List<String>[]" {
		t.Fatalf("label = %q", Label(in, arr1))
	}
}

func TestTypeVarsAreNominal(t *testing.T) {
	in := NewInterner()
	t1 := in.RegisterTypeVar("T", "Box", 0, source.Span{})
	t2 := in.RegisterTypeVar("T", "Pair", 0, source.Span{})
	if t1 == t2 {
		t.Fatalf("distinct type variables must not be merged")
	}
	if in.UpperBound(t1) != in.Builtins().Object {
		t.Fatalf("default upper bound should be Object")
	}
}

func TestWildcardDirectionAffectsIdentity(t *testing.T) {
	in := NewInterner()
	s := in.Builtins().String
	ext := in.Intern(MakeWildcard(s, false))
	sup := in.Intern(MakeWildcard(s, true))
	if ext == sup {
		t.Fatalf("? extends and ? super must differ")
	}
	if Label(in, sup) != "? super String" {
		t.Fatalf("label = %q", Label(in, sup))
	}
}

func TestDirectSupersSubstitutesArguments(t *testing.T) {
	in := NewInterner()
	coll := in.RegisterClass("Collection", true)
	e := in.RegisterTypeVar("E", "Collection", 0, source.Span{})
	in.UpdateClass(coll, func(ci *ClassInfo) { ci.TypeParams = []TypeID{e} })

	list := in.RegisterClass("List", true)
	x := in.RegisterTypeVar("X", "List", 0, source.Span{})
	in.UpdateClass(list, func(ci *ClassInfo) {
		ci.TypeParams = []TypeID{x}
		ci.Supers = []TypeID{in.Intern(MakeDeclared(coll, x))}
		ci.Fields = []Field{{Name: "head", Type: x}}
	})

	listOfString := in.Intern(MakeDeclared(list, in.Builtins().String))
	supers := in.DirectSupers(listOfString)
	if len(supers) != 1 || Label(in, supers[0]) != "Collection<String>" {
		t.Fatalf("supers = %v", supers)
	}
	f, ok := in.LookupField(listOfString, "head")
	if !ok || f.Type != in.Builtins().String {
		t.Fatalf("field head = %+v, %v", f, ok)
	}
}

func TestUpdateClassCallbackMayIntern(t *testing.T) {
	in := NewInterner()
	box := in.RegisterClass("Box", false)
	done := make(chan TypeID, 1)
	go func() {
		in.UpdateClass(box, func(ci *ClassInfo) {
			ci.Fields = []Field{{Name: "next", Type: in.Intern(MakeDeclared(box))}}
		})
		f, _ := in.LookupField(in.Intern(MakeDeclared(box)), "next")
		done <- f.Type
	}()
	select {
	case got := <-done:
		if Label(in, got) != "Box" {
			t.Fatalf("field next has type %s", Label(in, got))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("UpdateClass deadlocked on a callback that interns")
	}
}

func TestConcurrentIntern(t *testing.T) {
	in := NewInterner()
	var wg sync.WaitGroup
	ids := make([]TypeID, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = in.Intern(MakeArray(in.Builtins().Long))
		}(i)
	}
	wg.Wait()
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("concurrent interning produced different ids: %v", ids)
		}
	}
}
