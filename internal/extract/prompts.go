package extract

import "fmt"

// textPrompt builds the instruction for free-text entries. today anchors
// relative dates ("yesterday", "last Friday") so the model never has to
// guess the current date.
func textPrompt(text, today string) string {
	base :=
		"You are the input parser for a personal finance tracker.\n\n" +
			"Task:\n" +
			"- Interpret the user's message as a transaction command.\n" +
			"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
			"- Output a single JSON object.\n\n" +
			"The object must have an \"action\" field: \"add\", \"update\" or \"delete\".\n\n" +
			"For action \"add\":\n" +
			"- \"transactions\": array of objects, one per transaction mentioned, each with:\n" +
			"  - \"date\": string, ISO format \"YYYY-MM-DD\" (today is " + today + "; use it when no date is given)\n" +
			"  - \"type\": \"income\", \"expense\" or \"subscription\"\n" +
			"  - \"description\": string, a clear concise summary\n" +
			"  - \"amount\": number, always non-negative\n" +
			"  - \"original_currency\": string or null, ISO code if the user named a non-default currency\n\n" +
			"For action \"update\":\n" +
			"- \"id\": number or null, the transaction id if the user stated one\n" +
			"- \"criteria\": object or null, {\"date\": \"YYYY-MM-DD\", \"description\": string} when no id was stated\n" +
			"- \"field\": \"date\", \"type\", \"amount\" or \"description\"\n" +
			"- \"value\": string, the new value\n\n" +
			"For action \"delete\":\n" +
			"- \"scope\": one of \"specific_ids\", \"last_n\", \"first_n\", \"all\", \"all_except_last_n\", \"all_except_ids\", \"criteria\"\n" +
			"- \"ids\": array of numbers (for specific_ids and all_except_ids)\n" +
			"- \"n\": number (for last_n, first_n and all_except_last_n)\n" +
			"- \"criteria\": object or null, {\"date\": \"YYYY-MM-DD\", \"description\": string} (for scope criteria)\n\n" +
			"Rules:\n" +
			"- \"delete everything\" means scope \"all\"; \"delete all but the last 3\" means scope \"all_except_last_n\" with n=3.\n" +
			"- Recurring payments (rent, Netflix, gym) are \"subscription\"; one-off purchases are \"expense\".\n" +
			"- Never invent transactions the user did not mention.\n" +
			"Return ONLY valid raw JSON.\n" +
			"Do NOT wrap the response in code fences.\n" +
			"Do NOT use ```json or any Markdown.\n" +
			"Output must begin with \"{\" and end with \"}\".\n"

	return base + fmt.Sprintf("\nUser message: %s\n", text)
}

// receiptPrompt builds the instruction for receipt images. Receipts are
// always expenses.
func receiptPrompt() string {
	return "You are a receipt parser for a personal finance tracker.\n\n" +
		"Task:\n" +
		"- Extract one transaction from the attached receipt image.\n" +
		"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
		"- Output a single JSON object with these fields:\n" +
		"  - \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
		"  - \"type\": always \"expense\"\n" +
		"  - \"description\": string (store name or main items)\n" +
		"  - \"amount\": number, the receipt total\n" +
		"  - \"original_currency\": string or null, ISO code if the receipt is not in the default currency\n\n" +
		"Return ONLY valid raw JSON.\n" +
		"Do NOT wrap the response in code fences.\n" +
		"Do NOT use ```json or any Markdown.\n" +
		"Output must begin with \"{\" and end with \"}\".\n"
}
