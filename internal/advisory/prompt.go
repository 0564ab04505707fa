package advisory

import (
	"fmt"
)

// BuildPrompt wraps a sheet summary in the request sent to the service. The
// answer format it asks for is what the column mapper pattern-matches:
// one `<keyword> column: "<header>"` line per role.
func BuildPrompt(summary, dateKeyword, categoryKeyword, rateKeyword string) string {
	return fmt.Sprintf(`I have a spreadsheet of manufacturing rejections with potentially inconsistent data. Analyze the following data:

%s
Please:
1. Identify the exact column names holding the %[2]s, the %[3]s and the %[4]s percentage.
2. Describe the date formats present.
3. Describe how to clean and convert the %[2]s, %[3]s and %[4]s columns to numbers or dates.
4. Point out inconsistencies or missing values.

Start your answer with exactly these three lines, using the header names as written above:
%[2]s column: "<header>"
%[3]s column: "<header>"
%[4]s column: "<header>"`, summary, dateKeyword, categoryKeyword, rateKeyword)
}
