package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a value that tripped the injection screen.
type InjectionCheckResult struct {
	IsSQLi      bool   // true if an injection pattern was detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	ParamName   string // parameter name, or "literal" for in-statement content
	ParamValue  any    // the value that was checked
}

// CheckParameterForInjection runs libinjection over a parameter value.
//
// Only string values are checked — numbers, booleans, and other types cannot
// carry injection payloads and return nil. Returns nil when the value is
// clean.
func CheckParameterForInjection(paramName string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			ParamName:   paramName,
			ParamValue:  value,
		}
	}

	return nil
}

// CheckAllParameters screens every parameter value. Returns one result per
// flagged parameter; an empty slice means all values are clean.
func CheckAllParameters(params map[string]any) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for name, value := range params {
		if result := CheckParameterForInjection(name, value); result != nil {
			results = append(results, result)
		}
	}
	return results
}

// checkLiteralsForInjection screens the contents of a statement's string
// literals. A generated statement's structure is keyword-led and inspectable;
// its literals are where smuggled fragments hide, and libinjection is built
// to fingerprint exactly that form of content.
func checkLiteralsForInjection(sqlQuery string) *InjectionCheckResult {
	for _, literal := range stringLiterals(sqlQuery) {
		if result := CheckParameterForInjection("literal", literal); result != nil {
			return result
		}
	}
	return nil
}
