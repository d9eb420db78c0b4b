package diag

// Code is a stable diagnostic identifier, independent of message wording
// (spec.md §4.4: "exact wording is not contractual"). Codes are grouped by
// the pipeline stage that raises them: E01xx parsing, E02xx table
// declarations, E03xx query declarations and lowering, E04xx backend
// declarations.
type Code string

// Internal: defensive checks with no single spec.md category of their own
// (e.g. a Plan.Validate failure surviving past lowering, which indicates a
// bug in sem rather than a malformed program).
const (
	CodeInternal Code = "E0000"
)

// Parsing (C3 front end).
const (
	CodeUnexpectedToken   Code = "E0101"
	CodeExpectedIdent     Code = "E0102"
	CodeExpectedPunct     Code = "E0103"
	CodeUnclosedGroup     Code = "E0104"
	CodeWrongGroupDelim   Code = "E0105"
	CodeExpectedLiteral   Code = "E0106"
	CodeUnexpectedEOF     Code = "E0107"
	CodeBadTypeExpr       Code = "E0108"
	CodeUnknownConnector  Code = "E0109"
	CodeUnknownOperator   Code = "E0110"
	CodeUnknownConstraint Code = "E0111"
)

// Table declarations (C4).
const (
	CodeTableRedefined           Code = "E0201"
	CodeFieldRedefined           Code = "E0202"
	CodeUnknownFieldType         Code = "E0203"
	CodeConstraintDupUnique      Code = "E0204"
	CodeConstraintDupPred        Code = "E0205"
	CodeConstraintUnknownField   Code = "E0206"
	CodeConstraintDupLimit       Code = "E0207"
	CodeConstraintBadLimitExpr   Code = "E0208"
	CodeTypeAliasCycle           Code = "E0209"
	CodeTypeAliasRedefined       Code = "E0210"
)

// Query declarations and lowering (C4).
const (
	CodeQueryRedefined            Code = "E0301"
	CodeUnknownParamType           Code = "E0302"
	CodeConnectorMismatch          Code = "E0303"
	CodeUndeclaredVariable         Code = "E0304"
	CodeVariableUsedTwice          Code = "E0305"
	CodeVariableUnusedWarning      Code = "E0306"
	CodeMultipleReturns            Code = "E0307"
	CodeUnionTypeMismatch          Code = "E0308"
	CodeDerefNonRef                Code = "E0309"
	CodeDerefBag                   Code = "E0310"
	CodeUnknownTable                Code = "E0311"
	CodeMissingInsertField          Code = "E0312"
	CodeUnknownInsertField          Code = "E0313"
	CodeUnknownUpdateAlias          Code = "E0314"
	CodeUnknownGetAlias             Code = "E0315"
	CodeUnknownUniqueAlias          Code = "E0316"
	CodeJoinFieldTypeMismatch       Code = "E0317"
	CodeSortFieldRepeated           Code = "E0318"
	CodeGroupByEmptyContext         Code = "E0319"
	CodeLiftEmptyContext            Code = "E0320"
	CodeCombineMissingIdentity      Code = "E0321"
	CodeForkFanoutZero              Code = "E0322"
	CodeUnionEmptyOperands          Code = "E0323"
	CodeExpandNonRecordField        Code = "E0324"
	CodeReturnOutsideContext        Code = "E0325"
	CodeAssertTypeMismatch          Code = "E0326"
)

// Backend declarations (C8 front-end validation).
const (
	CodeUnknownBackendName   Code = "E0401"
	CodeBackendRedefined     Code = "E0402"
	CodeUnknownBackendOption Code = "E0403"
	CodeBadBackendOptionKind Code = "E0404"
	CodeUnknownInterfaceName Code = "E0405"
	CodeUnknownTableSelector Code = "E0406"
	CodeUnknownRuntimeProfile Code = "E0407"
)
