package types

import "testing"

func TestLayoutStructNaturalAlignment(t *testing.T) {
	st := &Type{Kind: Struct, Tag: "S", Members: []*Member{
		{Name: "a", Type: TChar},
		{Name: "b", Type: TInt},
		{Name: "c", Type: TChar},
	}}
	LayoutStruct(st, 0, 8)
	if st.Members[0].ByteOffset != 0 {
		t.Fatalf("a offset = %d, want 0", st.Members[0].ByteOffset)
	}
	if st.Members[1].ByteOffset != 4 {
		t.Fatalf("b offset = %d, want 4 (aligned up from 1)", st.Members[1].ByteOffset)
	}
	if st.Members[2].ByteOffset != 8 {
		t.Fatalf("c offset = %d, want 8", st.Members[2].ByteOffset)
	}
}

func TestLayoutStructPackOverride(t *testing.T) {
	st := &Type{Kind: Struct, Tag: "P", Members: []*Member{
		{Name: "a", Type: TChar},
		{Name: "b", Type: TInt},
	}}
	LayoutStruct(st, 1, 8)
	if st.Members[1].ByteOffset != 1 {
		t.Fatalf("packed b offset = %d, want 1", st.Members[1].ByteOffset)
	}
}

func TestLayoutStructBitfields(t *testing.T) {
	st := &Type{Kind: Struct, Tag: "BF", Members: []*Member{
		{Name: "a", Type: TUInt, BitWidth: 3},
		{Name: "b", Type: TUInt, BitWidth: 5},
		{Name: "c", Type: TUInt, BitWidth: 1},
	}}
	LayoutStruct(st, 0, 8)
	if st.Members[0].ByteOffset != 0 || st.Members[0].BitOffset != 0 {
		t.Fatalf("a = %+v", st.Members[0])
	}
	if st.Members[1].ByteOffset != 0 || st.Members[1].BitOffset != 3 {
		t.Fatalf("b = %+v", st.Members[1])
	}
	// a+b = 8 bits exactly, fills the first byte; c overflows to the next.
	if st.Members[2].ByteOffset != 1 || st.Members[2].BitOffset != 0 {
		t.Fatalf("c = %+v", st.Members[2])
	}
}

func TestLayoutUnion(t *testing.T) {
	u := &Type{Kind: Union, Tag: "U", Members: []*Member{
		{Name: "i", Type: TInt},
		{Name: "d", Type: TDouble},
	}}
	LayoutUnion(u, 8)
	for _, m := range u.Members {
		if m.ByteOffset != 0 {
			t.Fatalf("union member %s offset = %d, want 0", m.Name, m.ByteOffset)
		}
	}
	if got := UnionSize(u, 8); got != 8 {
		t.Fatalf("union size = %d, want 8", got)
	}
}

func TestUsualArithmeticConversion(t *testing.T) {
	if got := UsualArithmeticConversion(TChar, TChar); got != TInt {
		t.Fatalf("char+char = %v, want int (promotion)", got.Kind)
	}
	if got := UsualArithmeticConversion(TInt, TUInt); got != TUInt {
		t.Fatalf("int+uint = %v, want uint", got.Kind)
	}
	if got := UsualArithmeticConversion(TLong, TInt); got != TLong {
		t.Fatalf("long+int = %v, want long", got.Kind)
	}
	if got := UsualArithmeticConversion(TInt, TDouble); got != TDouble {
		t.Fatalf("int+double = %v, want double", got.Kind)
	}
}
