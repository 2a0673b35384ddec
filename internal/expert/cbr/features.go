package cbr

import (
	"time"
)

// Feature names shared by extraction, similarity and configuration.
const (
	featMotivo            = "motivo"
	featDuracion          = "duracion"
	featRecentAbsences    = "ausencias_ultimo_mes"
	featValidationStatus  = "validation_status"
	featCertificateUpload = "certificate_uploaded"
	featSector            = "sector"
	featDeadlineExceeded  = "deadline_exceeded"
)

// Weights drive the similarity computation. Fixed at configuration
// time; the defaults mirror what HR tuned by hand.
type Weights map[string]float64

func DefaultWeights() Weights {
	return Weights{
		featMotivo:            0.25,
		featDuracion:          0.20,
		featRecentAbsences:    0.15,
		featValidationStatus:  0.10,
		featCertificateUpload: 0.15,
		featSector:            0.10,
		featDeadlineExceeded:  0.05,
	}
}

// categorical features compare by exact match; everything else is
// continuous.
var categorical = map[string]struct{}{
	featMotivo:            {},
	featValidationStatus:  {},
	featCertificateUpload: {},
}

// Explicit enumerations for categorical fields. Unknown values map to
// the 0.0 sentinel.
var motivoLevels = map[string]float64{
	"ART":                                 1.0,
	"Licencia Enfermedad Personal":        2.0,
	"Licencia Enfermedad Familiar":        3.0,
	"Licencia por Fallecimiento Familiar": 4.0,
	"Licencia por Matrimonio":             5.0,
	"Licencia por Paternidad":             6.0,
	"Licencia por Nacimiento":             7.0,
	"Permiso Gremial":                     8.0,
}

var sectorLevels = map[string]float64{
	"linea1":        1.0,
	"linea2":        2.0,
	"Mantenimiento": 3.0,
	"RH":            4.0,
}

// ExtractFeatures maps an absence record to the fixed numeric vector
// used for case comparison. now anchors the derived deadline feature.
func ExtractFeatures(facts map[string]any, now time.Time) map[string]float64 {
	features := map[string]float64{
		featMotivo:         motivoLevels[stringFact(facts, featMotivo)],
		featDuracion:       numberFact(facts, featDuracion),
		featRecentAbsences: numberFact(facts, featRecentAbsences),
		featSector:         sectorLevels[stringFact(facts, featSector)],
	}

	if boolFact(facts, featCertificateUpload) {
		features[featCertificateUpload] = 1.0
	} else {
		features[featCertificateUpload] = 0.0
	}

	if stringFact(facts, featValidationStatus) == "validated" {
		features[featValidationStatus] = 1.0
	} else {
		features[featValidationStatus] = 0.5
	}

	// Hours overdue on the certificate deadline, normalized to days.
	features[featDeadlineExceeded] = 0.0
	if deadline, ok := timeFact(facts, "certificate_deadline"); ok {
		if overdue := now.Sub(deadline).Hours() / 24.0; overdue > 0 {
			features[featDeadlineExceeded] = overdue
		}
	}

	return features
}

func stringFact(facts map[string]any, key string) string {
	s, _ := facts[key].(string)
	return s
}

func boolFact(facts map[string]any, key string) bool {
	b, _ := facts[key].(bool)
	return b
}

func numberFact(facts map[string]any, key string) float64 {
	switch n := facts[key].(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

// timeFact accepts both live time.Time values and the RFC3339 strings
// cases are stored with.
func timeFact(facts map[string]any, key string) (time.Time, bool) {
	switch t := facts[key].(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}
