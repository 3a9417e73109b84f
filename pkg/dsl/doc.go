/*
Package dsl provides a fluent builder for constructing whatsflow flows in Go.

It is an alternative to authoring JSON or YAML documents, useful for tests,
examples and flows generated by code.

Example usage:

	b := dsl.New("welcome").Key("welcome")

	b.Add("start").Start().Go("hello")
	b.Add("hello").SendMessage("Hola {{name}}").Go("age")
	b.Add("age").Question("¿Tu edad?").SaveTo("edad").Go("adult")
	b.Add("adult").Condition("edad", domain.OpGreaterThan, "17").
		WhenTrue("promo").
		WhenFalse("bye")
	b.Add("promo").Template("promo_v2", "es", map[string]string{"1": "{{name}}"})
	b.Add("bye").SendMessage("¡Hasta pronto!")

	flow, err := b.Build()
*/
package dsl
