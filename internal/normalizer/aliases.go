package normalizer

// Canonical field names. Parsers emit these directly for structured formats;
// everything else arrives as a hospital-specific header that the alias index
// resolves.
const (
	FieldPatientName   = "Patient_Name"
	FieldIdentityID    = "ABHA_ID"
	FieldPayload       = "Clinical_Payload"
	FieldConsentStatus = "Consent_Status"
	FieldConsentToken  = "Consent_Token"
	FieldNoticeID      = "Notice_ID"
	FieldNoticeDate    = "Notice_Date"
	FieldDataPurpose   = "Data_Purpose"
)

// CanonicalFields lists every canonical field in record order.
var CanonicalFields = []string{
	FieldPatientName,
	FieldIdentityID,
	FieldPayload,
	FieldConsentStatus,
	FieldConsentToken,
	FieldNoticeID,
	FieldNoticeDate,
	FieldDataPurpose,
}

// aliasGroups holds the hand-collected header spellings seen in hospital
// exports, keyed by canonical field. Lookup also tries each alias with
// separators stripped, so "patientname" and "pt name" resolve without being
// listed twice.
var aliasGroups = map[string][]string{
	FieldPatientName: {
		"patient_name", "name", "patient", "full_name", "patient_full_name",
		"pt_name", "p_name", "pname", "patient_name_full", "fullname",
		"patient_fullname", "name_of_patient", "first_name_last_name",
		"firstname_lastname", "patient_first_last", "pt_full_name",
		"name_full", "complete_name", "patient_complete_name",
		"beneficiary_name", "member_name", "insured_name", "subscriber_name",
		"client_name", "customer_name", "person_name", "individual_name",
		"name_of_beneficiary", "name_of_member", "name_of_insured",
		"patient_firstname", "patient_lastname", "firstname", "lastname",
		"first_name", "last_name",
	},
	FieldIdentityID: {
		"abha_id", "abha", "health_id", "health_id_number", "abha_number",
		"abha_no", "health_id_no", "abha_code", "health_id_code",
		"abha_identifier", "health_identifier", "ayushman_bharat_id",
		"ayushman_bharat_number", "national_health_id", "nhi", "nhi_number",
		"unique_health_id", "uhid", "uhid_number", "health_card_number",
		"health_card_no", "health_card_id", "medical_record_id", "mrn",
		"mrn_number", "patient_id", "pt_id", "ptid", "patient_identifier",
		"beneficiary_id", "member_id", "insured_id", "subscriber_id",
		"client_id", "customer_id",
	},
	FieldPayload: {
		"clinical_payload", "payload", "clinical_data", "medical_data",
		"clinical_info", "data", "medical_info", "clinical_information",
		"medical_information", "patient_data", "patient_info",
		"patient_information", "diagnosis", "diagnosis_data", "diagnosis_info",
		"treatment", "treatment_data", "treatment_info", "medical_record",
		"medical_record_data", "clinical_record", "clinical_record_data",
		"health_data", "health_info", "health_information", "case_data",
		"case_info", "visit_data", "visit_info", "encounter_data",
		"encounter_info", "episode_data", "episode_info", "notes",
		"clinical_notes", "medical_notes", "doctor_notes", "physician_notes",
		"remarks", "clinical_remarks", "medical_remarks", "comments",
		"clinical_comments", "medical_comments",
	},
	FieldConsentStatus: {
		"consent_status", "consent", "consent_state", "status",
		"consent_flag", "consent_status_flag", "consent_indicator",
		"consent_type", "consent_given", "consent_provided",
		"consent_obtained", "consent_received", "consent_acknowledged",
		"consent_confirmed", "consent_verified", "consent_approved",
		"consent_authorized", "consent_permission", "consent_agreement",
		"data_consent", "data_consent_status", "privacy_consent",
		"privacy_consent_status", "patient_consent", "patient_consent_status",
		"authorization_status", "authorization", "authorization_flag",
		"permission_status", "permission", "permission_flag",
		"agreement_status", "agreement", "approval_status", "approval",
		"verification_status", "verification", "confirmation_status",
		"confirmation", "acknowledgment_status", "acknowledgment",
	},
	FieldConsentToken: {
		"consent_token", "token", "artifact", "consent_artifact",
	},
	FieldNoticeID: {
		"id", "identifier", "number", "no", "code",
		"document_id", "document_number", "document_no", "document_code",
		"document_identifier", "reference_id", "reference_number",
		"reference_no", "reference_code", "reference_identifier",
		"tracking_id", "tracking_number", "tracking_no", "tracking_code",
		"tracking_identifier",
	},
	FieldNoticeDate: {
		"date", "timestamp", "datetime", "date_time", "time",
		"date_of_notice", "issue_date", "issue_datetime", "issue_timestamp",
		"created_date", "created_datetime", "created_timestamp",
		"sent_date", "sent_datetime", "sent_timestamp",
		"delivered_date", "delivered_datetime", "delivered_timestamp",
		"record_date", "record_datetime", "record_timestamp",
		"entry_date", "entry_datetime", "entry_timestamp",
		"submission_date", "submission_datetime", "submission_timestamp",
		"received_date", "received_datetime", "received_timestamp",
		"processed_date", "processed_datetime", "processed_timestamp",
		"updated_date", "updated_datetime", "updated_timestamp",
		"modified_date", "modified_datetime", "modified_timestamp",
		"document_date", "document_datetime", "document_timestamp",
		"document_issue_date", "document_created_date",
		"reference_date", "reference_datetime", "reference_timestamp",
		"tracking_date", "tracking_datetime", "tracking_timestamp",
	},
	FieldDataPurpose: {
		"data_purpose", "purpose_of_data", "purpose", "processing_purpose",
		"purpose_of_processing", "usage_purpose", "intent",
	},
}

// noticePrefixes and the suffix lists below generate the regulatory-flavored
// header families (dpdp_notice_id, privacy_notification_date, ...) that the
// alias groups would otherwise have to enumerate by hand.
var (
	noticePrefixes = []string{"", "dpdp_", "privacy_", "data_", "compliance_", "legal_", "regulatory_"}
	noticeBases    = []string{"notice", "notification"}
	noticeIDSuffix = []string{"", "_id", "_number", "_num", "_no", "_code", "_identifier", "_id_number", "_id_no"}
	noticeDtSuffix = []string{"_date", "_datetime", "_date_time", "_timestamp", "_issued_date", "_issue_date",
		"_issue_datetime", "_issue_timestamp", "_created_date", "_created_datetime", "_created_timestamp",
		"_sent_date", "_sent_datetime", "_sent_timestamp", "_delivered_date", "_delivered_datetime",
		"_delivered_timestamp"}
)

// buildAliasIndex flattens the groups and generated families into a single
// lookup table. Every alias is also indexed with underscores removed.
func buildAliasIndex() map[string]string {
	index := make(map[string]string, 2048)
	add := func(alias, canonical string) {
		if _, taken := index[alias]; !taken {
			index[alias] = canonical
		}
		compact := stripSeparators(alias)
		if _, taken := index[compact]; !taken {
			index[compact] = canonical
		}
	}

	for canonical, aliases := range aliasGroups {
		// The canonical name maps to itself.
		add(normalizeKey(canonical), canonical)
		for _, alias := range aliases {
			add(alias, canonical)
		}
	}

	for _, prefix := range noticePrefixes {
		for _, base := range noticeBases {
			for _, suffix := range noticeIDSuffix {
				if prefix == "" && suffix == "" {
					add(base, FieldNoticeID)
					continue
				}
				add(prefix+base+suffix, FieldNoticeID)
			}
			for _, suffix := range noticeDtSuffix {
				add(prefix+base+suffix, FieldNoticeDate)
			}
		}
	}
	return index
}
