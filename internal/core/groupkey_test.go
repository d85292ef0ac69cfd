package core

import "testing"

func TestGroupKeyEquality(t *testing.T) {
	if EntityKey(KindBank, 1) != EntityKey(KindBank, 1) {
		t.Fatal("identical entity keys must compare equal")
	}
	if EntityKey(KindBank, 1) == EntityKey(KindContact, 1) {
		t.Fatal("keys of different kinds must differ")
	}
	if EntityKey(KindBank, 1) == CategoryKey(KindBank, 1) {
		t.Fatal("entity and category keys must differ")
	}

	// Comparable as map keys.
	m := map[GroupKey]int{
		EntityKey(KindSecurity, 5): 1,
		CategoryKey(KindSecurity, 5): 2,
		KindKey(KindSecurity): 3,
	}
	if m[EntityKey(KindSecurity, 5)] != 1 || m[CategoryKey(KindSecurity, 5)] != 2 || m[KindKey(KindSecurity)] != 3 {
		t.Fatalf("map lookup mismatch: %v", m)
	}
}

func TestGroupKeyString(t *testing.T) {
	cases := map[string]GroupKey{
		"bank/12":            EntityKey(KindBank, 12),
		"security/category/3": CategoryKey(KindSecurity, 3),
		"contact":            KindKey(KindContact),
	}
	for want, key := range cases {
		if got := key.String(); got != want {
			t.Fatalf("String() = %q, want %q", got, want)
		}
	}
}

func TestGroupKeyLess(t *testing.T) {
	// Categories sort before entities, entities before kind totals.
	cat := CategoryKey(KindBank, 1)
	ent := EntityKey(KindBank, 1)
	kind := KindKey(KindBank)

	if !cat.Less(ent) || ent.Less(cat) {
		t.Fatal("category must sort before entity")
	}
	if !ent.Less(kind) || kind.Less(ent) {
		t.Fatal("entity must sort before kind total")
	}
	if !EntityKey(KindBank, 1).Less(EntityKey(KindContact, 1)) {
		t.Fatal("bank must sort before contact")
	}
	if !EntityKey(KindBank, 1).Less(EntityKey(KindBank, 2)) {
		t.Fatal("lower entity id must sort first")
	}
}
