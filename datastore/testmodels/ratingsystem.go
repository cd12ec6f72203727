/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package testmodels provides model definitions shared by tests of several packages.
package testmodels

import (
	"fmt"
	"strings"

	"github.com/suparena/itemstore/schema"
)

// RatingSystemName is the model name of RatingSystem.
const RatingSystemName = "RatingSystem"

// RatingSystem describes a rating system with an indexed name, an indexed level
// and an indexed computed slug derived from the name.
func RatingSystem() schema.Definition {
	return schema.Definition{
		Name: RatingSystemName,
		Properties: []schema.Property{
			{Name: "name", Type: schema.TypeString, Required: true},
			{Name: "description", Type: schema.TypeString},
			{Name: "siteUrl", Type: schema.TypeString},
			{Name: "level", Type: schema.TypeInteger, Default: 1},
			{Name: "createdAt", Type: schema.TypeDate},
			{Name: "updatedAt", Type: schema.TypeDate},
		},
		Computed: []schema.Computed{
			{Name: "slug", Type: schema.TypeString, Derive: Slug},
		},
		Indices: []schema.IndexDefinition{
			{Property: "name"},
			{Property: "level"},
			{Property: "slug"},
		},
	}
}

// Slug derives a lowercase, dash separated identifier from the name property.
func Slug(r schema.Reader) any {
	name, _ := r.Get("name")
	if name == nil {
		return nil
	}
	return strings.Join(strings.Fields(strings.ToLower(fmt.Sprint(name))), "-")
}

// Plain describes a model without any index.
func Plain() schema.Definition {
	return schema.Definition{
		Name: "Plain",
		Properties: []schema.Property{
			{Name: "title"},
			{Name: "rank", Type: schema.TypeNumber},
		},
	}
}
