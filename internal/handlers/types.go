package handlers

// URLsBody is the request body shared by check and report.
type URLsBody struct {
	URLs []string `doc:"URLs to check or report" example:"[\"https://slop.example.com/post/1\"]" json:"urls" maxItems:"500"`
}

// CheckRequest is the request for checking URLs against known slop.
type CheckRequest struct {
	Body URLsBody
}

// PathView is a known path of a domain.
type PathView struct {
	ID    int64  `doc:"Path id"                 example:"7"           json:"id"`
	Value string `doc:"Path and query, escaped" example:"/post/1?a=b" json:"value"`
}

// DomainView is a known domain with its paths.
type DomainView struct {
	ID    int64      `doc:"Domain id"   example:"3"                json:"id"`
	Name  string     `doc:"Domain name" example:"slop.example.com" json:"name"`
	Paths []PathView `doc:"Known paths"                            json:"paths"`
}

// CheckResponse lists the submitted domains that were reported before.
type CheckResponse struct {
	Body struct {
		Domains []DomainView `doc:"Known domains among the submitted URLs" json:"domains"`
	}
}

// ReportRequest is the request for reporting slop URLs.
type ReportRequest struct {
	Authorization string `doc:"Optional bearer token identifying the reporter" header:"Authorization"`
	Body          URLsBody
}

// ReportResponse summarizes what a report changed.
type ReportResponse struct {
	Body struct {
		DomainsCreated int `doc:"New domains stored"        example:"1" json:"domainsCreated"`
		PathsCreated   int `doc:"New paths stored"          example:"2" json:"pathsCreated"`
		ReportsCreated int `doc:"New reports recorded"      example:"2" json:"reportsCreated"`
		ReportsUpdated int `doc:"Existing reports refreshed" example:"0" json:"reportsUpdated"`
	}
}

// TopRequest is the request for the top offenders ranking.
type TopRequest struct {
	Limit int `default:"10" doc:"Maximum number of domains, 0 for all" minimum:"0" query:"limit"`
}

// OffenderView is a ranked domain.
type OffenderView struct {
	DomainID      int64  `doc:"Domain id"                      example:"3"                json:"domainId"`
	Name          string `doc:"Domain name"                    example:"slop.example.com" json:"name"`
	ReportedPaths int64  `doc:"Distinct paths reported on it" example:"12"               json:"reportedPaths"`
}

// TopResponse is the ranked list of offending domains.
type TopResponse struct {
	Body struct {
		Offenders []OffenderView `doc:"Domains ordered by reported paths" json:"offenders"`
	}
}

// VerifyRequest carries an email verification token.
type VerifyRequest struct {
	Body struct {
		Token string `doc:"Verification token sent by email" example:"V1StGXR8_Z5jdHi6B-myT" json:"token" minLength:"1"`
	}
}

// SignupRequest registers a reporter account.
type SignupRequest struct {
	Body struct {
		Email        string `doc:"Address the verification token is sent to" example:"reporter@example.com" json:"email" maxLength:"254" minLength:"1"`
		PasswordHash string `doc:"Password hash, stored as given" json:"passwordHash" minLength:"1"`
	}
}

// SignupResponse identifies the new, still unverified, user.
type SignupResponse struct {
	Body struct {
		UserID string `doc:"Id of the new user" json:"userId"`
	}
}
