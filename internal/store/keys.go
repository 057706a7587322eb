package store

// Persisted key names. These are the complete persistence surface of the
// application; nothing else is written to the store.
const (
	KeyIsAuthenticated        = "isAuthenticated"        // bool string ("true"/"false")
	KeyLoggedInUser           = "loggedInUser"           // JSON: username/team/isAdmin
	KeyChatbotStyle           = "chatbotStyle"           // style enum string
	KeyAdvancedChatSettings   = "advancedChatSettings"   // JSON of the four numeric fields
	KeyFAQList                = "faqList"                // JSON array of FAQ entries
	KeyDocumentContext        = "documentContext"        // raw document text
	KeyDocumentContextHistory = "documentContextHistory" // JSON array of snapshots, newest first
	KeyAppUsers               = "appUsers"               // JSON array of registered credentials
	KeyRememberLoginID        = "rememberLoginIdChecked" // bool string
	KeySavedLoginID           = "savedLoginId"           // last remembered login id
)
