/*
Package itemstore persists schema-described items through pluggable storage
adapters and keeps in-memory indices over them.

A Storage is opened from a config.Config. It builds the configured adapter
(memory, file, sqlite or dynamodb), optionally puts an LRU record cache in front
of it and, for the file adapter, watches the data folder for changes made by
other processes. Models are defined on the storage and share its adapter:

	cfg, err := config.Load("itemstore.yaml")
	if err != nil {
	    return err
	}
	store, err := itemstore.Open(ctx, cfg)
	if err != nil {
	    return err
	}
	defer store.Close()

	systems, err := store.Define(schema.Definition{
	    Name: "RatingSystem",
	    Properties: []schema.Property{
	        {Name: "name", Type: schema.TypeString, Required: true},
	    },
	    Indices:    []schema.IndexDefinition{{Property: "name"}},
	})

	it := systems.NewItem()
	_ = it.Set("name", "Elo")
	err = it.Save(ctx)

See the model package for loading, saving and finding items.
*/
package itemstore
