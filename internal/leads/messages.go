package leads

// Messages is the user-facing copy returned in JSON responses.
type Messages struct {
	Inserted         string
	Updated          string
	Unchanged        string
	WaitlistInserted string
	WaitlistExists   string
	InvalidEmail     string
	InvalidPhoneCO   string
	InvalidPhoneIntl string
	InvalidInput     string
	InvalidBody      string
	ServerError      string
}

var catalog = map[string]Messages{
	"es": {
		Inserted:         "✅ Apuntado. Gracias, te contactamos pronto.",
		Updated:          "✅ Ya estabas apuntado. Hemos actualizado tus datos.",
		Unchanged:        "✅ Ya estabas apuntado.",
		WaitlistInserted: "¡Listo! Te hemos apuntado ✅",
		WaitlistExists:   "Ya estabas en la lista ✅",
		InvalidEmail:     "Email inválido",
		InvalidPhoneCO:   "WhatsApp inválido: en Colombia deben ser 10 dígitos",
		InvalidPhoneIntl: "WhatsApp inválido: usa entre 7 y 15 dígitos, con prefijo + opcional",
		InvalidInput:     "Datos inválidos: revisa la longitud de los campos",
		InvalidBody:      "Solicitud inválida",
		ServerError:      "Error del servidor. Intenta de nuevo.",
	},
	"en": {
		Inserted:         "✅ You're on the list. Thanks, we'll be in touch soon.",
		Updated:          "✅ You were already signed up. We've updated your details.",
		Unchanged:        "✅ You were already signed up.",
		WaitlistInserted: "Done! You're on the waitlist ✅",
		WaitlistExists:   "You were already on the waitlist ✅",
		InvalidEmail:     "Invalid email",
		InvalidPhoneCO:   "Invalid WhatsApp number: Colombian numbers have 10 digits",
		InvalidPhoneIntl: "Invalid WhatsApp number: use 7 to 15 digits with an optional leading +",
		InvalidInput:     "Invalid input: check the field lengths",
		InvalidBody:      "Invalid request",
		ServerError:      "Server error. Please try again.",
	},
}

// MessagesFor returns the copy for locale, falling back to Spanish.
func MessagesFor(locale string) Messages {
	if m, ok := catalog[locale]; ok {
		return m
	}
	return catalog["es"]
}

// InvalidPhone returns the phone error copy for policy.
func (m Messages) InvalidPhone(policy PhonePolicy) string {
	if policy == PhonePolicyInternational {
		return m.InvalidPhoneIntl
	}
	return m.InvalidPhoneCO
}
