package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Assign parses a textual answer for one field into a patch. Paths are either
// a top-level Field ("pathway") or a nested path ("biomarkers.feno"); nested
// paths produce a NestedPatch so sibling values survive. List fields take a
// comma separated list of ids; an empty value selects nothing.
func Assign(path, value string) (Patch, error) {
	path = strings.TrimSpace(path)
	value = strings.TrimSpace(value)
	if section, leaf, ok := strings.Cut(path, "."); ok {
		nested, err := assignNested(section, leaf, value)
		if err != nil {
			return Patch{}, err
		}
		return Patch{Nested: &nested}, nil
	}
	var p Patch
	switch Field(path) {
	case FieldAgeGroup:
		v, err := parseAgeGroup(value)
		if err != nil {
			return Patch{}, err
		}
		p.AgeGroup = &v
	case FieldDiagnosisConfirmed:
		return boolPatch(path, value, func(p *Patch, b *bool) { p.DiagnosisConfirmed = b })
	case FieldSymptomFrequency:
		v, err := parseFrequency(value)
		if err != nil {
			return Patch{}, err
		}
		p.SymptomFrequency = &v
	case FieldCurrentStep:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 5 {
			return Patch{}, fmt.Errorf("record: currentStep must be 1-5, got %q", value)
		}
		p.CurrentStep = &n
	case FieldPathway:
		switch Pathway(value) {
		case Pathway1, Pathway2:
			v := Pathway(value)
			p.Pathway = &v
		default:
			return Patch{}, fmt.Errorf("record: unknown pathway %q", value)
		}
	case FieldDaytimeSymptoms:
		return boolPatch(path, value, func(p *Patch, b *bool) { p.DaytimeSymptoms = b })
	case FieldNightWaking:
		return boolPatch(path, value, func(p *Patch, b *bool) { p.NightWaking = b })
	case FieldRelieverUse:
		return boolPatch(path, value, func(p *Patch, b *bool) { p.RelieverUse = b })
	case FieldActivityLimitation:
		return boolPatch(path, value, func(p *Patch, b *bool) { p.ActivityLimitation = b })
	case FieldRiskFactors:
		p.RiskFactors = splitIDs(value)
	case FieldSeverity:
		switch Severity(value) {
		case SeverityMildModerate, SeveritySevere:
			v := Severity(value)
			p.Severity = &v
		default:
			return Patch{}, fmt.Errorf("record: unknown severity %q", value)
		}
	case FieldExacerbationSigns:
		p.ExacerbationSigns = splitIDs(value)
	case FieldComorbidities:
		p.Comorbidities = splitIDs(value)
	default:
		return Patch{}, fmt.Errorf("record: field %q cannot be assigned from text", path)
	}
	return p, nil
}

func assignNested(section, leaf, value string) (NestedPatch, error) {
	var nested NestedPatch
	switch Field(section) {
	case FieldDemographics:
		d := &Demographics{}
		switch leaf {
		case "age":
			n, err := parseCount(value)
			if err != nil {
				return nested, fmt.Errorf("record: demographics.age: %w", err)
			}
			d.Age = &n
		case "weightKg":
			f, err := parseMeasure(value)
			if err != nil {
				return nested, fmt.Errorf("record: demographics.weightKg: %w", err)
			}
			d.WeightKg = &f
		case "smoker":
			b, err := parseBool(value)
			if err != nil {
				return nested, fmt.Errorf("record: demographics.smoker: %w", err)
			}
			d.Smoker = &b
		case "adultOnset":
			b, err := parseBool(value)
			if err != nil {
				return nested, fmt.Errorf("record: demographics.adultOnset: %w", err)
			}
			d.AdultOnset = &b
		default:
			return nested, fmt.Errorf("record: unknown field demographics.%s", leaf)
		}
		nested.Demographics = d
	case FieldBiomarkers:
		b := &Biomarkers{}
		switch leaf {
		case "eosinophils", "feno", "totalIgE":
			f, err := parseMeasure(value)
			if err != nil {
				return nested, fmt.Errorf("record: biomarkers.%s: %w", leaf, err)
			}
			switch leaf {
			case "eosinophils":
				b.Eosinophils = &f
			case "feno":
				b.FeNO = &f
			default:
				b.TotalIgE = &f
			}
		case "allergicSensitization":
			v, err := parseBool(value)
			if err != nil {
				return nested, fmt.Errorf("record: biomarkers.allergicSensitization: %w", err)
			}
			b.AllergicSensitization = &v
		default:
			return nested, fmt.Errorf("record: unknown field biomarkers.%s", leaf)
		}
		nested.Biomarkers = b
	case FieldMedications:
		m := &Medications{}
		switch leaf {
		case "exacerbationsPastYear":
			n, err := parseCount(value)
			if err != nil {
				return nested, fmt.Errorf("record: medications.exacerbationsPastYear: %w", err)
			}
			m.ExacerbationsPastYear = &n
		case "highDoseICS", "maintenanceOCS", "steroidDependent":
			v, err := parseBool(value)
			if err != nil {
				return nested, fmt.Errorf("record: medications.%s: %w", leaf, err)
			}
			switch leaf {
			case "highDoseICS":
				m.HighDoseICS = &v
			case "maintenanceOCS":
				m.MaintenanceOCS = &v
			default:
				m.SteroidDependent = &v
			}
		default:
			return nested, fmt.Errorf("record: unknown field medications.%s", leaf)
		}
		nested.Medications = m
	default:
		return nested, fmt.Errorf("record: %q has no nested fields", section)
	}
	return nested, nil
}

func boolPatch(path, value string, set func(*Patch, *bool)) (Patch, error) {
	b, err := parseBool(value)
	if err != nil {
		return Patch{}, fmt.Errorf("record: %s: %w", path, err)
	}
	var p Patch
	set(&p, &b)
	return p, nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("expected yes/no, got %q", value)
	}
	return b, nil
}

func parseMeasure(value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("expected a number, got %q", value)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected a finite number, got %q", value)
	}
	if f < 0 {
		return 0, fmt.Errorf("must not be negative, got %q", value)
	}
	return f, nil
}

func parseCount(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("expected a whole number, got %q", value)
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative, got %q", value)
	}
	return n, nil
}

func parseAgeGroup(value string) (AgeGroup, error) {
	switch AgeGroup(value) {
	case AgeAdult, AgeAdolescent, AgeChild:
		return AgeGroup(value), nil
	}
	return "", fmt.Errorf("record: unknown age group %q", value)
}

func parseFrequency(value string) (SymptomFrequency, error) {
	switch SymptomFrequency(value) {
	case FrequencyInfrequent, FrequencyTwiceMonthly, FrequencyMostDays, FrequencyDailyOrLowLFT:
		return SymptomFrequency(value), nil
	}
	return "", fmt.Errorf("record: unknown symptom frequency %q", value)
}

func splitIDs(value string) []string {
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if id := strings.TrimSpace(part); id != "" && !containsID(out, id) {
			out = append(out, id)
		}
	}
	return out
}
