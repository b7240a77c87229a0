package model

// Scenario is one candidate battery evaluated against a shared load and tariff.
type Scenario struct {
	Name    string        `yaml:"name" json:"name"`
	Battery BatteryParams `yaml:"battery" json:"battery"`
}

// Label is the scenario name, falling back to the battery name.
func (s Scenario) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Battery.Name
}
