package mirror

const (
	editPrefix        = "✏️ Edited"
	deletedNotice     = "🗑️ Deleted"
	deletedMediaTag   = " [Had Media]"
	editedMediaNotice = "[Media caption edited]"
	viewOncePrefix    = "🔥 View-Once from "
)

func editAnnotation(newText string) string {
	if newText == "" {
		newText = editedMediaNotice
	}
	return TruncateContent(editPrefix + ":\n\n" + newText)
}

func deleteAnnotation(hadMedia bool) string {
	if hadMedia {
		return deletedNotice + deletedMediaTag
	}
	return deletedNotice
}

func viewOnceCaption(senderName, text string) string {
	caption := viewOncePrefix + senderName
	if text != "" {
		caption += "\n\n" + text
	}
	return TruncateContent(caption)
}
