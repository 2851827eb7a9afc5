package tools

// RegisterAll registers every built-in tool provider. To add a new provider,
// write its factory and add it here.
func RegisterAll(r *Registry) {
	r.Register("person", NewPersonTools)
	r.Register("family", NewFamilyTools)
	r.Register("schedule", NewScheduleTools)
	r.Register("general", NewGeneralQueryTools)
	r.Register("time", NewTimeTools)
}
