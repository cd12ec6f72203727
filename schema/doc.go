/*
Package schema compiles declarative model definitions.

A Definition lists stored properties, computed properties and indices:

	def := schema.Definition{
	    Name: "User",
	    Properties: []schema.Property{
	        {Name: "name", Required: true},
	        {Name: "born", Type: schema.TypeDate},
	    },
	    Computed: []schema.Computed{
	        {Name: "initial", Derive: func(r schema.Reader) any { ... }},
	    },
	    Indices: []schema.IndexDefinition{{Property: "name"}},
	}

	s, err := schema.Compile(def)

Compile resolves property types and index kinds through package registry. The
built-in types string, integer, number, boolean, date, uuid, binary and any as
well as the "eq" index kind are registered on import.

A compiled Schema converts between in-memory values and stored records and
creates read-only Views that derive computed properties on demand.
*/
package schema
