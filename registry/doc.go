/*
Package registry manages the pluggable parts of ItemStore schemas.

The registry system enables:
  - Custom property types with their own serialization
  - Custom index implementations selected by kind

Type Registry:
Maps property type names to serializers:

	registry.RegisterType("money", moneySerializer{})
	s, err := registry.GetSerializer("money")

Index Registry:
Maps index kinds to factories:

	registry.RegisterIndexKind("eq", func() index.Handler {
	    return index.NewEqIndex()
	})

The built-in types and the "eq" index kind are registered by package schema.
The registry is thread-safe and should be populated during initialization,
typically in init() functions.
*/
package registry
