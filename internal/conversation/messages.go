package conversation

const (
	msgWelcome = "👋 Hello! I'm the *Uzbekistan AQI Bot*.\n\n" +
		"Please use the buttons below to check air quality."
	msgUseButtons       = "Please use the buttons below to check air quality."
	msgChooseRegion     = "🗺️ Please choose a region:"
	msgInvalidRegion    = "❌ Invalid region. Please choose a button from the keyboard below."
	msgMainRestored     = "Main menu restored."
	msgChooseCity       = "🏙️ Now choose a city in *%s*:"
	msgNoStations       = "⚠️ No monitoring stations listed for *%s*. Use the back button."
	msgReturnRegions    = "Returning to region selection..."
	msgInvalidCity      = "❌ Invalid city selection. Please use the buttons."
	msgFetching         = "🔎 Fetching AQI for *%s*..."
	msgLocationReceived = "📍 Location received! Searching for the nearest station..."
	msgSelectAnother    = "Select another option:"
	msgCancelled        = "Conversation cancelled. Main menu restored."

	msgAPIError     = "❌ Error fetching data for %s: *%s*"
	msgInvalidData  = "❌ The station for %s returned invalid data. Please try again later."
	msgNetworkError = "❌ Network or API communication error."
)

// Usage record action names.
const (
	auditStart         = "Start Command"
	auditStartRegions  = "Start Region Selection"
	auditBackToMain    = "Back to Main Menu"
	auditSelectRegion  = "Select Region"
	auditBackToRegions = "Back to Regions"
	auditByCity        = "AQI by City"
	auditByLocation    = "AQI by Location"
	auditCancelled     = "Conversation Cancelled"
)
