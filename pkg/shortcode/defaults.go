package shortcode

// defaults is the reference tag vocabulary shared by the bundled flows.
var defaults = []Definition{
	{"_welcome", "Welcome screen shown", TypeString, System},
	{"patient_age", "Patient age in years", TypeNumber, Demographics},
	{"patient_sex", "Patient biological sex (male/female)", TypeString, Demographics},
	{"patient_dob", "Patient date of birth", TypeDate, Demographics},
	{"patient_email", "Patient email address", TypeString, Demographics},
	{"patient_country", "Patient country of residence", TypeString, Demographics},
	{"full_name", "Patient full legal name", TypeString, Demographics},
	{"current_weight_kg", "Current weight in kilograms", TypeNumber, Medical},
	{"height_cm", "Height in centimeters", TypeNumber, Medical},
	{"medical_conditions", "List of existing medical conditions", TypeStringList, Medical},
	{"current_medications", "List of current medications", TypeStringList, Medical},
	{"allergies", "Known allergies", TypeStringList, Medical},
	{"pregnancy_status", "Current pregnancy or planning status", TypeString, Medical},
	{"breastfeeding", "Currently breastfeeding", TypeBoolean, Medical},
	{"weight_loss_goal", "Primary weight loss goal", TypeString, Goals},
	{"motivation_factors", "Factors motivating weight loss", TypeStringList, Goals},
	{"target_weight_kg", "Target weight in kilograms", TypeNumber, Goals},
	{"exercise_frequency", "How often patient exercises", TypeString, Lifestyle},
	{"diet_type", "Current diet type or restrictions", TypeString, Lifestyle},
	{"sleep_hours", "Average hours of sleep per night", TypeNumber, Lifestyle},
	{"alcohol_consumption", "Alcohol consumption frequency", TypeString, Lifestyle},
	{"smoking_status", "Smoking status", TypeString, Lifestyle},
	{"lifestyle_activity", "Current activity level (sedentary, light, moderate, very)", TypeString, Lifestyle},
	{"previous_diets", "Previous weight loss approaches tried", TypeStringList, Lifestyle},
	{"primary_skin_concern", "Primary skin concern (acne, aging, pigmentation, etc.)", TypeString, Medical},
	{"acne_severity", "Severity of acne (mild, moderate, severe, cystic)", TypeString, Medical},
	{"aging_concerns", "Specific aging concerns (fine lines, wrinkles, sagging)", TypeStringList, Medical},
	{"skin_type", "Skin type (oily, dry, combination, normal, sensitive)", TypeString, Medical},
	{"current_skincare_routine", "Level of current skincare routine", TypeString, Lifestyle},
	{"skin_allergies", "Whether patient has known skincare allergies", TypeString, Medical},
	{"allergy_details", "Details of known allergies", TypeString, Medical},
}
