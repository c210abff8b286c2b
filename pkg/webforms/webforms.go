// Package webforms holds the markup conventions of the case-management
// application: CSS selectors, toast and validation patterns, and the
// per-form selector sets the navigation and CRUD steps are built from.
//
// Selectors are comma-separated fallbacks. The first alternative is usually
// the full server-generated id; the later ones survive master-page changes.
package webforms

import "strings"

// Containers the interaction layer treats specially.
const (
	// OpenModal matches dialog containers in their shown state.
	OpenModal = ".modal.show, .modal.in, .modal[style*='display: block'], .modal.fade.in"

	// Toast matches any notification banner.
	Toast = "div.jq-toast-single, div[class*='toast'], div.alert.alert-success"
	// SuccessToast matches the green banner shown after a save or delete.
	SuccessToast = ".jq-toast-single.jq-icon-success"
	// ToastHeading is the bold first line inside a toast.
	ToastHeading = ".jq-toast-heading"
	// ToastClose is the glyph rendered in front of toast text.
	ToastClose = "×"

	// ValidationSummary matches server-side and client-side validation output.
	ValidationSummary = ".validation-summary.alert.alert-danger, .validation-summary-errors, " +
		".field-validation-error, .text-danger, div[id*='ValidationSummary']"

	// UpdateProgress matches the spinner rendered during partial postbacks.
	UpdateProgress = "div[id$='UpdateProgress1'], div[id*='updateProgress'], .update-progress"
)

// Login and role selection.
const (
	LoginUser     = "input[id$='UserName'], input[name$='UserName'], input#txtUserName"
	LoginPassword = "input[id$='Password'][type='password'], input[type='password']"
	LoginSubmit   = "input[id$='LoginButton'], button[id$='LoginButton'], a[id$='LoginButton'], input[type='submit']"

	RoleProgram = "select[id$='ddlProgram'], select[id*='Program']"
	RoleRole    = "select[id$='ddlRole'], select[id*='Role']"
	RoleSubmit  = "a[id$='btnSelectRole'], input[id$='btnSelectRole'], button[id$='btnSelectRole'], a[id$='btnContinue']"

	// DefaultProgram and DefaultRole are what every form suite logs in as.
	DefaultProgram = "Program 1"
	DefaultRole    = "DataEntry"
)

// Case search and the case home page.
const (
	NavBar             = ".navbar"
	SearchCasesButton  = ".btn-group.middle a[href*='SearchCases.aspx']"
	SearchPC1Input     = "input[id$='txtPC1ID']"
	SearchButton       = "a[id$='btSearch'], button[id$='btSearch']"
	FormsTab           = "a[data-toggle='tab'][href='#forms'][id$='formstab']"
	FormsPane          = ".tab-pane[id$='forms']"
	PC1Display         = "[id$='lblPC1ID'], [id$='lblPc1Id'], .pc1-id, .pc1-id-value"
	WorkerDropdown     = "select#ctl00_ctl00_ContentPlaceHolder1_ContentPlaceHolder1_ddlWorker, select[id$='_ddlWorker'], select[id*='ddlCaseWorker'], select[id*='ddlFSW']"
	ReferralsWaiting   = "table[id*='grReferralsWaitingScreen']"
	GenericDeleteModal = ".dc-confirmation-modal.modal"
	ModalCancel        = "button.btn.btn-default"
	// ModalDismiss is the "No" button of a delete confirmation.
	ModalDismiss = "button.btn.btn-default[data-dismiss='modal'], div.modal-footer button[data-dismiss='modal']"
)

// Form describes the selectors of one CRUD form: the link on the forms tab,
// the list page grid and the edit page.
type Form struct {
	Name          string
	Link          string
	NewButton     string
	Grid          string
	EditLink      string
	DeleteButton  string
	DeleteModal   string
	ConfirmDelete string
	Submit        string
	// KeyParam is the query parameter carrying the record key in edit links.
	KeyParam string
}

// AuditC is the alcohol screening form.
var AuditC = Form{
	Name:      "Audit-C",
	Link:      "a#ctl00_ContentPlaceHolder1_ucForms_lnkAuditC.moreInfo, a[data-formtype='ac'].moreInfo, a.list-group-item[href*='AuditCs.aspx']",
	NewButton: "a[id$='lnkNewAuditC'].btn, a.btn[href*='AuditC.aspx']",
	Grid:      "#tblAuditCs, table[id*='grAuditC'], table[id*='gvAuditC']",
	EditLink:  "a[id$='lnkEditAuditC'], a.edit-auditc, a[id$='lnkEditButton']",
	DeleteButton: "button[id$='btnDeleteAuditC'], .delete-auditc, div.delete-control a[id$='lbDelete'], " +
		"a.btn.btn-danger[id$='lbDelete']",
	DeleteModal:   "div#divDeleteAuditCModal, div.dc-confirmation-modal.modal",
	ConfirmDelete: "a.modal-delete, a[id$='lbDeleteAuditC'], a.btn.btn-danger",
	Submit: "a[id$='_SubmitAuditC_LoginView1_btnSubmit'].btn.btn-primary, " +
		"a[id$='_Submit1_LoginView1_btnSubmit'].btn.btn-primary, button[id$='_btnSubmit'].btn.btn-primary",
	KeyParam: "AuditCPK",
}

// HITS is the intimate partner violence screening form.
var HITS = Form{
	Name:          "HITS",
	Link:          "a#ctl00_ContentPlaceHolder1_ucForms_lnkHITS, a[data-formtype='hi'].moreInfo, a.list-group-item[href*='HITSs.aspx']",
	NewButton:     "a[id$='lnkNewHITS'].btn, a.btn[href*='HITS.aspx']",
	Grid:          "table#tblHITSs, table[id*='tblHITS']",
	EditLink:      "a.edit-HITS, a[id*='lnkEditHITS']",
	DeleteButton:  "button.delete-HITS, button[id*='btnDeleteHITS']",
	DeleteModal:   "div.dc-confirmation-modal.modal",
	ConfirmDelete: "a[id*='lbDeleteHITS'].btn-danger.modal-delete, div.modal-footer a.btn-danger",
	Submit:        "a#ctl00_ctl00_ContentPlaceHolder1_ContentPlaceHolder1_SubmitHITS_LoginView1_btnSubmit, a[id*='btnSubmit'].btn.btn-primary, a.btn.btn-primary[title*='Save']",
	KeyParam:      "HITSPK",
}

// PHQ9 is the depression screening form.
var PHQ9 = Form{
	Name:      "PHQ-9",
	Link:      "a[data-formtype='pq'].moreInfo, a.list-group-item[href*='PHQ9s.aspx']",
	NewButton: "a[id$='lnkNewPHQ9'].btn, a.btn[href*='PHQ9.aspx']",
	Grid:      "table[id*='grPHQ9'], table[id*='tblPHQ9']",
	EditLink:  "a[id*='lnkEditPHQ9']",
	Submit:    "a[id*='btnSubmit'].btn.btn-primary, button[id$='_btnSubmit'].btn.btn-primary",
	KeyParam:  "PHQ9PK",
}

// EngagementLog is the pre-assessment engagement log.
var EngagementLog = Form{
	Name:          "Engagement Log",
	Link:          "a.moreInfo[data-formtype='pa'], a.moreInfo[id$='lnkPA']",
	NewButton:     "a.btn.btn-default.pull-right[id$='btnAdd']",
	Grid:          "table[id$='grPreassessments']",
	DeleteButton:  "a.btn.btn-danger[id*='btnDelete'][id$='lbDelete']",
	DeleteModal:   ".dc-confirmation-modal",
	ConfirmDelete: "a.btn.btn-primary[id*='btnDelete'][id$='lbConfirmDelete']",
	Submit:        "a.btn.btn-primary[id$='btnSubmit'], input.btn.btn-primary[id$='btnSubmit'], button.btn.btn-primary[id$='btnSubmit']",
	KeyParam:      "PreassessmentPK",
}

// Forms indexes the known forms by lower-cased name and aliases.
var Forms = map[string]Form{
	"auditc":         AuditC,
	"audit-c":        AuditC,
	"hits":           HITS,
	"phq9":           PHQ9,
	"phq-9":          PHQ9,
	"engagementlog":  EngagementLog,
	"engagement log": EngagementLog,
}

// LookupForm finds a form by name, ignoring case and surrounding space.
func LookupForm(name string) (Form, bool) {
	f, ok := Forms[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Success toast text fragments.
const (
	ToastSaved        = "Form Saved"
	ToastDeleted      = "Form Deleted"
	ToastWasDeleted   = "was successfully deleted"
	ValidationMissing = "is required"

	// EmptyGridText is the placeholder row DataTables renders in an empty grid.
	EmptyGridText = "No data available"
)
