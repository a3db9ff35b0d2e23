package schema

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindSpecs(t *testing.T, xml string, specs []FieldSpec) *Model {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))
	m, err := Bind(doc.Root(), specs)
	require.NoError(t, err)
	return m
}

func TestBind_DuplicateName(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<root/>`))

	_, err := Bind(doc.Root(), []FieldSpec{
		{Name: "a", Path: []string{"a"}},
		{Name: "a", Path: []string{"b"}},
	})
	require.Error(t, err)
}

func TestGet_TextField(t *testing.T) {
	m := bindSpecs(t, `<root><props><value>42.5</value></props></root>`, []FieldSpec{
		{Name: "value", Path: []string{"props", "value"}, Default: "1.0"},
		{Name: "absent", Path: []string{"props", "other"}, Default: "7"},
	})

	v, err := m.Get("value")
	require.NoError(t, err)
	assert.Equal(t, "42.5", v)

	v, err = m.Get("absent")
	require.NoError(t, err)
	assert.Equal(t, "7", v, "absent field yields its default")

	f, err := m.GetFloat("value")
	require.NoError(t, err)
	assert.Equal(t, 42.5, f)
}

func TestGet_AttrField(t *testing.T) {
	m := bindSpecs(t, `<root><mode kind="fast"/></root>`, []FieldSpec{
		{Name: "kind", Path: []string{"mode"}, Attr: "kind", Default: "slow"},
	})

	v, err := m.Get("kind")
	require.NoError(t, err)
	assert.Equal(t, "fast", v)
}

func TestGet_UnknownField(t *testing.T) {
	m := bindSpecs(t, `<root/>`, nil)
	_, err := m.Get("nope")
	require.Error(t, err)
}

func TestSet_CreatesPath(t *testing.T) {
	m := bindSpecs(t, `<root/>`, []FieldSpec{
		{Name: "value", Path: []string{"props", "value"}, Default: "1.0", Validate: Float},
	})

	require.NoError(t, m.Set("value", "3.5"))

	v, err := m.Get("value")
	require.NoError(t, err)
	assert.Equal(t, "3.5", v)
	assert.NotNil(t, m.root.SelectElement("props").SelectElement("value"))
}

func TestSet_Enum(t *testing.T) {
	m := bindSpecs(t, `<root/>`, []FieldSpec{
		{Name: "status", Path: []string{"status"}, Default: "off", Enum: []string{"on", "off"}},
	})

	require.NoError(t, m.Set("status", "on"))
	require.Error(t, m.Set("status", "maybe"))
}

func TestSet_Validate(t *testing.T) {
	m := bindSpecs(t, `<root/>`, []FieldSpec{
		{Name: "value", Path: []string{"value"}, Validate: Float},
	})

	require.NoError(t, m.SetFloat("value", 0.25))
	require.Error(t, m.Set("value", "not-a-number"))
}

func TestDiscriminator(t *testing.T) {
	m := bindSpecs(t, `<root>
  <fields>
    <field field_id="1"><friction model="pressure"/></field>
    <field field_id="2"/>
  </fields>
</root>`, []FieldSpec{
		{
			Name:    "friction",
			Path:    []string{"fields", "field", "friction"},
			Attr:    "model",
			Default: "none",
			Match:   &Discriminator{Tag: "field", Attr: "field_id"},
		},
	})

	v, err := m.GetFor("friction", "1")
	require.NoError(t, err)
	assert.Equal(t, "pressure", v)

	v, err = m.GetFor("friction", "2")
	require.NoError(t, err)
	assert.Equal(t, "none", v, "field without a friction child yields the default")

	_, err = m.Get("friction")
	require.Error(t, err, "discriminated field requires an id")

	// Writing for an unseen id creates the field element with its id.
	require.NoError(t, m.SetFor("friction", "3", "fluxes"))
	v, err = m.GetFor("friction", "3")
	require.NoError(t, err)
	assert.Equal(t, "fluxes", v)

	// Existing ids are updated in place, not duplicated.
	require.NoError(t, m.SetFor("friction", "1", "none"))
	fields := m.root.SelectElement("fields").ChildElements()
	assert.Len(t, fields, 3)
}
