package session

import (
	"fmt"

	"github.com/kingrea/airway/internal/record"
)

var track1Plans = map[int]string{
	1: "As-needed low-dose ICS-formoterol.",
	2: "As-needed low-dose ICS-formoterol.",
	3: "Low-dose maintenance ICS-formoterol (maintenance and reliever therapy).",
	4: "Medium-dose maintenance ICS-formoterol (maintenance and reliever therapy).",
	5: "Add-on LAMA, refer for phenotypic assessment, consider high-dose maintenance ICS-formoterol and biologic therapy.",
}

var track2Plans = map[int]string{
	1: "Take ICS whenever SABA is taken.",
	2: "Low-dose maintenance ICS, as-needed SABA.",
	3: "Low-dose maintenance ICS-LABA, as-needed SABA.",
	4: "Medium or high-dose maintenance ICS-LABA, as-needed SABA.",
	5: "Add-on LAMA, refer for phenotypic assessment, consider high-dose maintenance ICS-LABA and biologic therapy.",
}

// Plan summarises the controller regimen for a treatment track and step.
func Plan(pathway record.Pathway, step int) string {
	plans := track2Plans
	if pathway == record.Pathway1 {
		plans = track1Plans
	}
	if text, ok := plans[step]; ok {
		return fmt.Sprintf("Step %d: %s", step, text)
	}
	return fmt.Sprintf("Step %d: no plan on file.", step)
}
