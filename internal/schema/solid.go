package schema

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

// Per-field interaction model values.
const (
	InteractionNone     = "none"
	InteractionPressure = "pressure"
	InteractionFluxes   = "fluxes"
)

var interactionModels = []string{InteractionNone, InteractionPressure, InteractionFluxes}

// solidSpecs is the field table for the solid-particle physics sub-model.
// Each entry replaces a hand-written getter/setter pair.
var solidSpecs = []FieldSpec{
	{
		Name:     "compaction",
		Path:     []string{"solid_particles_properties", "solid_compaction"},
		Default:  "0.64",
		Validate: Float,
	},
	{
		Name:     "frictional_threshold",
		Path:     []string{"solid_particles_properties", "min_frictional_threshold"},
		Default:  "0.6",
		Validate: Float,
	},
	{
		Name:     "elasticity",
		Path:     []string{"solid_particles_properties", "elasticity_coefficient"},
		Default:  "0.9",
		Validate: Float,
		Match:    &Discriminator{Tag: "elasticity_coefficient", Attr: "field_id"},
	},
	{
		Name:    "polydispersion",
		Path:    []string{"solid_particles_properties", "polydispersion"},
		Default: "off",
		Enum:    []string{"on", "off"},
	},
	{
		Name:    "friction",
		Path:    []string{"fields", "field", "friction"},
		Attr:    "model",
		Default: InteractionNone,
		Enum:    interactionModels,
		Match:   &Discriminator{Tag: "field", Attr: "field_id"},
	},
	{
		Name:    "granular",
		Path:    []string{"fields", "field", "granular"},
		Attr:    "model",
		Default: InteractionNone,
		Enum:    interactionModels,
		Match:   &Discriminator{Tag: "field", Attr: "field_id"},
	},
	{
		Name:    "kinetic",
		Path:    []string{"fields", "field", "kinetic"},
		Attr:    "model",
		Default: InteractionNone,
		Enum:    interactionModels,
		Match:   &Discriminator{Tag: "field", Attr: "field_id"},
	},
}

// SolidProperties exposes the solid-particle physics fields of a case
// document through the schema table.
type SolidProperties struct {
	model *Model
}

// NewSolidProperties binds the solid-particle field table to the document's
// thermophysical_models element, creating it when absent.
func NewSolidProperties(doc *etree.Document) (*SolidProperties, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	thermo := root.SelectElement("thermophysical_models")
	if thermo == nil {
		thermo = root.CreateElement("thermophysical_models")
	}
	model, err := Bind(thermo, solidSpecs)
	if err != nil {
		return nil, err
	}
	return &SolidProperties{model: model}, nil
}

func (s *SolidProperties) Compaction() (float64, error) {
	return s.model.GetFloat("compaction")
}

func (s *SolidProperties) SetCompaction(value float64) error {
	return s.model.SetFloat("compaction", value)
}

func (s *SolidProperties) MinFrictionalThreshold() (float64, error) {
	return s.model.GetFloat("frictional_threshold")
}

func (s *SolidProperties) SetMinFrictionalThreshold(value float64) error {
	return s.model.SetFloat("frictional_threshold", value)
}

func (s *SolidProperties) ElasticityCoefficient(fieldID string) (float64, error) {
	return s.model.GetFloatFor("elasticity", fieldID)
}

func (s *SolidProperties) SetElasticityCoefficient(fieldID string, value float64) error {
	return s.model.SetFloatFor("elasticity", fieldID, value)
}

// CouplingStatus reports the polydispersed coupling status. Reads and
// writes share one field spec, so the value written is the value read
// back.
func (s *SolidProperties) CouplingStatus() (bool, error) {
	v, err := s.model.Get("polydispersion")
	if err != nil {
		return false, err
	}
	return v == "on", nil
}

func (s *SolidProperties) SetCouplingStatus(enabled bool) error {
	v := "off"
	if enabled {
		v = "on"
	}
	return s.model.Set("polydispersion", v)
}

func (s *SolidProperties) FrictionModel(fieldID string) (string, error) {
	return s.model.GetFor("friction", fieldID)
}

func (s *SolidProperties) SetFrictionModel(fieldID, model string) error {
	return s.model.SetFor("friction", fieldID, model)
}

func (s *SolidProperties) GranularModel(fieldID string) (string, error) {
	return s.model.GetFor("granular", fieldID)
}

func (s *SolidProperties) SetGranularModel(fieldID, model string) error {
	return s.model.SetFor("granular", fieldID, model)
}

func (s *SolidProperties) KineticModel(fieldID string) (string, error) {
	return s.model.GetFor("kinetic", fieldID)
}

func (s *SolidProperties) SetKineticModel(fieldID, model string) error {
	return s.model.SetFor("kinetic", fieldID, model)
}

// FieldIDs lists the field_id values present under fields/, in document
// order.
func (s *SolidProperties) FieldIDs() []string {
	fields := s.model.root.SelectElement("fields")
	if fields == nil {
		return nil
	}
	var ids []string
	for _, f := range fields.ChildElements() {
		if f.Tag != "field" {
			continue
		}
		if id := f.SelectAttrValue("field_id", ""); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ValidFieldID vets a field_id value (positive integer).
func ValidFieldID(id string) error {
	n, err := strconv.Atoi(id)
	if err != nil || n < 1 {
		return fmt.Errorf("invalid field_id %q", id)
	}
	return nil
}
