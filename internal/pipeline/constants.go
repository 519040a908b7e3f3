package pipeline

// Tokens and fixed texts used when talking to the model.
const (
	// UnknownSentinel is the exact reply the model gives when it cannot classify a transaction.
	UnknownSentinel = "###UNKNOWN###"

	// UnknownCategoryName is rendered in place of a missing or unresolvable category.
	UnknownCategoryName = "???"

	// CategoriesToken and HistoryToken are the template placeholders.
	CategoriesToken = "{{Categories}}"
	HistoryToken    = "{{HistoricalTransactions}}"

	// NoHistoryPlaceholder replaces HistoryToken when no categorised history exists.
	NoHistoryPlaceholder = "(no categorised transactions available yet)"

	// UserInstruction precedes the one-row table in the user message.
	UserInstruction = "Categorise the following transaction. Reply with the category name only, or " +
		UnknownSentinel + " if no category fits.\n\n"

	// DefaultModelName is the default Gemini model used for classification.
	DefaultModelName = "gemini-2.5-flash"
)
