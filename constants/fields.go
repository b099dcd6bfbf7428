package constants

// Field names extracted from a form, in their canonical order.
const (
	FieldName                  = "name"
	FieldDOB                   = "dob"
	FieldAddress               = "address"
	FieldCity                  = "city"
	FieldState                 = "state"
	FieldZip                   = "zip"
	FieldPhone                 = "phone"
	FieldEmail                 = "email"
	FieldGender                = "gender"
	FieldMaritalStatus         = "marital_status"
	FieldOccupation            = "occupation"
	FieldEmergencyContactName  = "emergency_contact_name"
	FieldEmergencyContactPhone = "emergency_contact_phone"
	FieldPolicyNumber          = "policy_number"
	FieldDate                  = "date"

	// FieldRawExtraction holds the model output when it could not be parsed as a JSON object.
	FieldRawExtraction = "raw_extraction"
)

var fieldOrder = []string{
	FieldName,
	FieldDOB,
	FieldAddress,
	FieldCity,
	FieldState,
	FieldZip,
	FieldPhone,
	FieldEmail,
	FieldGender,
	FieldMaritalStatus,
	FieldOccupation,
	FieldEmergencyContactName,
	FieldEmergencyContactPhone,
	FieldPolicyNumber,
	FieldDate,
}

// FieldNames returns a copy of the schema keys in canonical order.
func FieldNames() []string {
	out := make([]string, len(fieldOrder))
	copy(out, fieldOrder)
	return out
}

// IsField reports whether key is one of the schema keys.
func IsField(key string) bool {
	for _, f := range fieldOrder {
		if f == key {
			return true
		}
	}
	return false
}

// FieldLabels are human readable column/report labels.
var FieldLabels = map[string]string{
	FieldName:                  "Name",
	FieldDOB:                   "Date of Birth",
	FieldAddress:               "Address",
	FieldCity:                  "City",
	FieldState:                 "State",
	FieldZip:                   "Zip",
	FieldPhone:                 "Phone",
	FieldEmail:                 "Email",
	FieldGender:                "Gender",
	FieldMaritalStatus:         "Marital Status",
	FieldOccupation:            "Occupation",
	FieldEmergencyContactName:  "Emergency Contact Name",
	FieldEmergencyContactPhone: "Emergency Contact Phone",
	FieldPolicyNumber:          "Policy Number",
	FieldDate:                  "Date",
}
