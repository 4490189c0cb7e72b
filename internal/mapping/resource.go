package mapping

// DefaultConstructor wraps an evaluated field tree as a map-backed Resource,
// deferring full clinical-schema validation to an external library per
// design note 9 — the toolbox only needs the resource's type and id to
// route it to the sink and flattener.
type DefaultConstructor struct{}

func (DefaultConstructor) Construct(resourceType string, fields map[string]any) (Resource, error) {
	return &mapResource{resourceType: resourceType, fields: fields}, nil
}

type mapResource struct {
	resourceType string
	fields       map[string]any
}

func (r *mapResource) ResourceType() string { return r.resourceType }

func (r *mapResource) ID() string {
	if id, ok := r.fields["id"].(string); ok {
		return id
	}
	return ""
}

func (r *mapResource) Fields() map[string]any { return r.fields }
