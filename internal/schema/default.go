package schema

// Default returns the registry for the DANDI dataset catalog. Table names
// follow the dandisets_* prefix convention of the catalog store; the raw-SQL
// whitelist is derived from this same set, so both query front-ends share one
// surface.
func Default(opts ...Option) *Registry {
	r, err := New(defaultEntities(), opts...)
	if err != nil {
		// The built-in catalog is validated by tests; a failure here is a
		// programming error, not runtime input.
		panic("schema: invalid built-in registry: " + err.Error())
	}
	return r
}

func defaultEntities() []Entity {
	return []Entity{
		{
			Name:       "dandiset",
			Table:      "dandisets_dandiset",
			PrimaryKey: "id",
			Columns: []Column{
				{Name: "id", Type: TypeInteger},
				{Name: "dandi_id", Type: TypeText},
				{Name: "identifier", Type: TypeText},
				{Name: "base_id", Type: TypeText},
				{Name: "version", Type: TypeText, Nullable: true},
				{Name: "version_order", Type: TypeInteger},
				{Name: "is_draft", Type: TypeBoolean},
				{Name: "is_latest", Type: TypeBoolean},
				{Name: "schema_version", Type: TypeText},
				{Name: "name", Type: TypeText},
				{Name: "description", Type: TypeText},
				{Name: "date_created", Type: TypeTimestamp, Nullable: true},
				{Name: "date_modified", Type: TypeTimestamp, Nullable: true},
				{Name: "date_published", Type: TypeTimestamp, Nullable: true},
				{Name: "license", Type: TypeJSON},
				{Name: "citation", Type: TypeText, Nullable: true},
				{Name: "url", Type: TypeText, Nullable: true},
				{Name: "doi", Type: TypeText, Nullable: true},
				{Name: "keywords", Type: TypeJSON},
				{Name: "study_target", Type: TypeJSON},
				{Name: "created_at", Type: TypeTimestamp},
				{Name: "updated_at", Type: TypeTimestamp},
			},
			Relationships: []Relationship{
				{
					Name: "assets", Target: "asset", Cardinality: ManyToMany, Inverse: "dandisets",
					JoinTable: "dandisets_assetdandiset", JoinSourceColumn: "dandiset_id", JoinTargetColumn: "asset_id",
				},
				{
					Name: "assets_summary", Target: "assets_summary", Cardinality: OneToOne, Inverse: "dandiset",
					FKColumn: "assets_summary_id",
				},
				{
					Name: "anatomy", Target: "anatomy", Cardinality: ManyToMany, Inverse: "dandisets",
					JoinTable: "dandisets_dandiset_anatomy", JoinSourceColumn: "dandiset_id", JoinTargetColumn: "anatomy_id",
				},
			},
		},
		{
			Name:       "asset",
			Table:      "dandisets_asset",
			PrimaryKey: "id",
			Columns: []Column{
				{Name: "id", Type: TypeInteger},
				{Name: "dandi_asset_id", Type: TypeText},
				{Name: "identifier", Type: TypeText},
				{Name: "schema_version", Type: TypeText},
				{Name: "content_size", Type: TypeInteger},
				{Name: "encoding_format", Type: TypeText},
				{Name: "date_modified", Type: TypeTimestamp, Nullable: true},
				{Name: "date_published", Type: TypeTimestamp, Nullable: true},
				{Name: "digest", Type: TypeJSON},
				{Name: "content_url", Type: TypeJSON},
				{Name: "variable_measured", Type: TypeJSON},
				{Name: "created_at", Type: TypeTimestamp},
				{Name: "updated_at", Type: TypeTimestamp},
			},
			Relationships: []Relationship{
				{
					Name: "dandisets", Target: "dandiset", Cardinality: ManyToMany, Inverse: "assets",
					JoinTable: "dandisets_assetdandiset", JoinSourceColumn: "asset_id", JoinTargetColumn: "dandiset_id",
				},
				{
					Name: "participants", Target: "participant", Cardinality: ManyToMany, Inverse: "assets",
					JoinTable: "dandisets_asset_participants", JoinSourceColumn: "asset_id", JoinTargetColumn: "participant_id",
				},
				{
					Name: "approaches", Target: "approach", Cardinality: ManyToMany, Inverse: "assets",
					JoinTable: "dandisets_asset_approaches", JoinSourceColumn: "asset_id", JoinTargetColumn: "approachtype_id",
				},
				{
					Name: "measurement_techniques", Target: "measurement_technique", Cardinality: ManyToMany, Inverse: "assets",
					JoinTable: "dandisets_asset_measurement_techniques", JoinSourceColumn: "asset_id", JoinTargetColumn: "measurementtechniquetype_id",
				},
				{
					Name: "lindi_metadata", Target: "lindi_metadata", Cardinality: OneToOne, Inverse: "asset",
					TargetFKColumn: "asset_id",
				},
			},
		},
		{
			Name:       "participant",
			Table:      "dandisets_participant",
			PrimaryKey: "id",
			Columns: []Column{
				{Name: "id", Type: TypeInteger},
				{Name: "identifier", Type: TypeText},
				{Name: "age", Type: TypeJSON, Nullable: true},
			},
			Relationships: []Relationship{
				{Name: "species", Target: "species", Cardinality: ManyToOne, Inverse: "participants", FKColumn: "species_id"},
				{Name: "sex", Target: "sex", Cardinality: ManyToOne, Inverse: "participants", FKColumn: "sex_id"},
				{Name: "strain", Target: "strain", Cardinality: ManyToOne, Inverse: "participants", FKColumn: "strain_id"},
				{
					Name: "assets", Target: "asset", Cardinality: ManyToMany, Inverse: "participants",
					JoinTable: "dandisets_asset_participants", JoinSourceColumn: "participant_id", JoinTargetColumn: "asset_id",
				},
			},
		},
		{
			Name:       "species",
			Table:      "dandisets_speciestype",
			PrimaryKey: "id",
			Columns:    typeColumns(),
			Relationships: []Relationship{
				{Name: "participants", Target: "participant", Cardinality: OneToMany, Inverse: "species", TargetFKColumn: "species_id"},
			},
		},
		{
			Name:       "sex",
			Table:      "dandisets_sextype",
			PrimaryKey: "id",
			Columns:    typeColumns(),
			Relationships: []Relationship{
				{Name: "participants", Target: "participant", Cardinality: OneToMany, Inverse: "sex", TargetFKColumn: "sex_id"},
			},
		},
		{
			Name:       "strain",
			Table:      "dandisets_straintype",
			PrimaryKey: "id",
			Columns:    typeColumns(),
			Relationships: []Relationship{
				{Name: "participants", Target: "participant", Cardinality: OneToMany, Inverse: "strain", TargetFKColumn: "strain_id"},
			},
		},
		{
			Name:       "anatomy",
			Table:      "dandisets_anatomy",
			PrimaryKey: "id",
			Columns:    typeColumns(),
			Relationships: []Relationship{
				{
					Name: "dandisets", Target: "dandiset", Cardinality: ManyToMany, Inverse: "anatomy",
					JoinTable: "dandisets_dandiset_anatomy", JoinSourceColumn: "anatomy_id", JoinTargetColumn: "dandiset_id",
				},
			},
		},
		{
			Name:       "approach",
			Table:      "dandisets_approachtype",
			PrimaryKey: "id",
			Columns:    typeColumns(),
			Relationships: []Relationship{
				{
					Name: "assets", Target: "asset", Cardinality: ManyToMany, Inverse: "approaches",
					JoinTable: "dandisets_asset_approaches", JoinSourceColumn: "approachtype_id", JoinTargetColumn: "asset_id",
				},
			},
		},
		{
			Name:       "measurement_technique",
			Table:      "dandisets_measurementtechniquetype",
			PrimaryKey: "id",
			Columns:    typeColumns(),
			Relationships: []Relationship{
				{
					Name: "assets", Target: "asset", Cardinality: ManyToMany, Inverse: "measurement_techniques",
					JoinTable: "dandisets_asset_measurement_techniques", JoinSourceColumn: "measurementtechniquetype_id", JoinTargetColumn: "asset_id",
				},
			},
		},
		{
			Name:       "assets_summary",
			Table:      "dandisets_assetssummary",
			PrimaryKey: "id",
			Columns: []Column{
				{Name: "id", Type: TypeInteger},
				{Name: "number_of_bytes", Type: TypeInteger},
				{Name: "number_of_files", Type: TypeInteger},
				{Name: "number_of_subjects", Type: TypeInteger, Nullable: true},
				{Name: "number_of_samples", Type: TypeInteger, Nullable: true},
				{Name: "number_of_cells", Type: TypeInteger, Nullable: true},
				{Name: "variable_measured", Type: TypeJSON},
			},
			Relationships: []Relationship{
				{Name: "dandiset", Target: "dandiset", Cardinality: OneToOne, Inverse: "assets_summary", TargetFKColumn: "assets_summary_id"},
			},
		},
		{
			Name:       "lindi_metadata",
			Table:      "dandisets_lindimetadata",
			PrimaryKey: "id",
			Columns: []Column{
				{Name: "id", Type: TypeInteger},
				{Name: "structure_metadata", Type: TypeJSON},
				{Name: "lindi_url", Type: TypeText},
				{Name: "processed_at", Type: TypeTimestamp},
				{Name: "processing_version", Type: TypeText},
			},
			Relationships: []Relationship{
				{Name: "asset", Target: "asset", Cardinality: OneToOne, Inverse: "lindi_metadata", FKColumn: "asset_id"},
			},
		},
	}
}

// typeColumns is the shared column set of the enumerated-type entities
// (species, sex, strain, anatomy, approach, measurement technique).
func typeColumns() []Column {
	return []Column{
		{Name: "id", Type: TypeInteger},
		{Name: "identifier", Type: TypeText, Nullable: true},
		{Name: "name", Type: TypeText, Nullable: true},
	}
}
