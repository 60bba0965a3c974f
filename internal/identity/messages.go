package identity

// Mensajes que ve el usuario. Nunca incluyen texto de error del proveedor.
var userMessages = map[Kind]string{
	KindAuthenticationRequired: "Please sign in again to continue.",
	KindBadServerResponse:      "The sign-in service returned an unexpected response. Please try again.",
	KindUserCancelled:          "Sign-in was cancelled.",
	KindEmailNotFound:          "This account does not share an email address, so it can't be linked.",
	KindEmailMismatch:          "This account uses a different email address than your current account.",
	KindInternal:               "Something went wrong on our side. Please try again later.",
	KindNotFound:               "We couldn't find the credentials for this account. Try signing in again.",
	KindOffline:                "You're offline. Connect to the internet and try again.",
	KindInvalidArgument:        "The request was not valid.",
	KindLastProvider:           "You can't disconnect your only sign-in method.",
}

const genericMessage = "An unexpected error occurred. Please try again."

// UserMessage traduce err a un mensaje agnóstico del proveedor para el canal de
// alertas. Un error nil devuelve "".
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg, ok := userMessages[KindOf(err)]; ok {
		return msg
	}
	return genericMessage
}
