/*
Package sqlshape is the structural core of a typed query layer: it keeps the
three representations of a query projection synchronised.

A projection starts life as a mixed value: an arbitrary blend of wrapped
leaf expressions (placeholders standing for database columns, built with
[Lit] and [Column]), plain Go scalars, tagged structs and tuples. From a
mixed value sqlshape derives, statically and deterministically, a shape
descriptor that yields three things:

  - the canonical expression tree ([Projection.Node]), consumed by a query
    building layer;
  - the fully packed form ([Projection.Pack]), in which every leaf is
    wrapped and therefore addressable as a sub-expression
    ([Projection.EncodeRef]);
  - the inverse direction ([Projection.DecodeRow], [Projection.Iter]),
    reconstructing a plain runtime value from the flat sequence of scalars
    a query returned.

# Basics

Scalars and tagged structs project directly:

	type Person struct {
		Name string `db:"name"`
		ID   int    `db:"id"`
	}

	proj := sqlshape.MustProject(Person{})
	rows, err := db.Query("SELECT name, id FROM person")
	if err != nil {
		...
	}
	v, err := proj.One(rows) // v is a Person
	person := v.(Person)

Column order is the struct's field declaration order; the query must select
columns in the same order. Mixed values combine freely:

	proj := sqlshape.MustProject(sqlshape.Column("name", ""), 42)

Here the first column decodes to a string and the literal 42 travels with
the projection.

# Mapped types

A domain type whose storage form differs from its Go form registers a
converter pair once, ahead of any query:

	err := sqlshape.RegisterMapped(Point{}, []any{0, 0}, sqlshape.Mapper{
		ToBase:   func(v any) (any, error) { p := v.(Point); return []any{p.X, p.Y}, nil },
		ToMapped: func(v any) (any, error) { e := v.([]any); return Point{X: e[0].(int), Y: e[1].(int)}, nil },
	})

The converter pair travels with the expression tree, so the decoding layer
assembles Point values rather than exposing the underlying pair of ints. A
backward conversion that fails at decode time surfaces as a [DecodeError];
it is never swallowed.

Shapes are stateless and immutable once resolved, so they are safe to share
across goroutines without synchronisation. Resolution failures, ambiguous
registrations and attempts to reference a value that is not in packed form
are all reported before any value flows through the core.

SQL generation, query optimisation and transaction management live
elsewhere; this package only guarantees that the value a caller supplied,
the tree the query builder sees and the value decoding hands back can never
drift apart structurally.
*/
package sqlshape
