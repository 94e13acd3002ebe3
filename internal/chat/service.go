package chat

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/citylibrary/libraryops-backend/internal/reporting"
	"github.com/citylibrary/libraryops-backend/pkg/config"
	"github.com/citylibrary/libraryops-backend/pkg/db/models"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
)

const (
	historyLimit        = 30
	availableBooksLimit = 20
	borrowedAllLimit    = 50
	dateDisplay         = "Mon Jan 2 2006"
	timeDisplay         = "15:04"
)

// Service answers single-turn desk questions. Every outcome, including an
// unknown member or an unreadable date, comes back as a reply; only
// infrastructure failures surface as errors.
type Service interface {
	Handle(ctx context.Context, message, memberCode string) (*Response, error)
}

// Response carries the rendered reply and the intent that produced it.
type Response struct {
	Intent Intent `json:"intent"`
	Reply  string `json:"reply"`
}

// ServiceParams collects chat dependencies.
type ServiceParams struct {
	Reports reporting.Service
	Library config.LibraryConfig
	Lending config.LendingConfig
}

type service struct {
	reports reporting.Service
	library config.LibraryConfig
	lending config.LendingConfig
	now     func() time.Time
}

// NewService wires the query responder.
func NewService(params ServiceParams) (Service, error) {
	if params.Reports == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reporting service required")
	}
	lending := params.Lending
	if lending.FinePerDay <= 0 {
		lending.FinePerDay = 100
	}
	return &service{
		reports: params.Reports,
		library: params.Library,
		lending: lending,
		now:     time.Now,
	}, nil
}

func (s *service) Handle(ctx context.Context, message, memberCode string) (*Response, error) {
	if strings.TrimSpace(message) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message required")
	}

	intent := Classify(message)
	respond := func(reply string) (*Response, error) {
		return &Response{Intent: intent, Reply: reply}, nil
	}

	switch intent {
	case IntentHours:
		return respond(fmt.Sprintf(
			"Our opening hours are:\n%s\n\nLocation: %s.",
			strings.Join(s.library.Hours, "\n"), s.library.Address,
		))
	case IntentContact:
		return respond(fmt.Sprintf(
			"You can contact us using:\nPhone: %s\nEmail: %s\nAddress: %s",
			s.library.Phone, s.library.Email, s.library.Address,
		))
	}

	var member *reporting.MemberSummary
	if code := strings.TrimSpace(memberCode); code != "" {
		summary, err := s.reports.MemberSummary(ctx, code)
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
				return respond(fmt.Sprintf(
					"I couldn't find a member with ID %s. Please check your member ID or ask staff to confirm it.",
					code,
				))
			}
			return nil, err
		}
		member = summary
	}

	if member == nil && memberScoped(intent) {
		return respond(
			"To answer that, please provide the member ID so I can look up this member. " +
				`For example: "Member ID is MEM20261234".`,
		)
	}

	switch intent {
	case IntentCurrentBorrowed:
		return respond(s.renderCurrentBorrowed(member))
	case IntentOverdue:
		return respond(s.renderOverdue(member))
	case IntentFines:
		return respond(s.renderFines(member))
	case IntentSummary:
		return respond(s.renderSummary(member))
	case IntentBorrowHistory:
		return respond(s.renderHistory(member))
	case IntentMembersWithFines:
		reply, err := s.renderMembersWithFines(ctx)
		if err != nil {
			return nil, err
		}
		return respond(reply)
	case IntentAvailableBooks:
		reply, err := s.renderAvailableBooks(ctx)
		if err != nil {
			return nil, err
		}
		return respond(reply)
	case IntentBorrowedAll:
		reply, err := s.renderBorrowedAll(ctx)
		if err != nil {
			return nil, err
		}
		return respond(reply)
	case IntentBorrowedOnDate:
		reply, err := s.renderBorrowedOnDate(ctx, message)
		if err != nil {
			return nil, err
		}
		return respond(reply)
	case IntentReturnedOnDate:
		reply, err := s.renderReturnedOnDate(ctx, message)
		if err != nil {
			return nil, err
		}
		return respond(reply)
	}

	return respond(generalHelp)
}

const generalHelp = "I can help you with library hours, contact details, overall borrowing activity, and a member's borrowing status. " +
	"For example, try asking:\n" +
	"• \"What time do you open?\"\n" +
	"• \"How can I contact the library?\"\n" +
	"• \"Give me available booklist\"\n" +
	"• \"What are the borrowed books and who borrowed them\"\n" +
	"• \"Which members currently have fines?\"\n" +
	"• \"What are the borrowed books on 15 Jan 2026\"\n" +
	"• \"What are the returned books on 15 Jan 2026\"\n" +
	"• \"What books has this member borrowed?\" (include the member ID)\n" +
	"• \"Does this member have any overdue books?\""

func (s *service) renderCurrentBorrowed(member *reporting.MemberSummary) string {
	active := activeByDueDate(member.History)
	if len(active) == 0 {
		return fmt.Sprintf("This member (%s) does not have any books currently borrowed.", member.Member.Name)
	}
	lines := make([]string, 0, len(active))
	for i, loan := range active {
		lines = append(lines, fmt.Sprintf(
			"#%d\nTitle : %s\nISBN  : %s\nDue   : %s",
			i+1, loan.BookTitle, loan.ISBN, loan.DueDate.Format(dateDisplay),
		))
	}
	return fmt.Sprintf(
		"This member (%s) currently has %d active borrowing(s):\n\n%s",
		member.Member.Name, len(active), strings.Join(lines, "\n\n"),
	)
}

func (s *service) renderOverdue(member *reporting.MemberSummary) string {
	now := s.now().UTC()
	var overdue []models.Loan
	for _, loan := range activeByDueDate(member.History) {
		if loan.IsOverdue(now) {
			overdue = append(overdue, loan)
		}
	}
	if len(overdue) == 0 {
		return fmt.Sprintf("Good news! This member (%s) does not have any overdue books right now.", member.Member.Name)
	}
	lines := make([]string, 0, len(overdue))
	for i, loan := range overdue {
		days := int(math.Ceil(now.Sub(loan.DueDate).Hours() / 24))
		fine := days * s.lending.FinePerDay
		lines = append(lines, fmt.Sprintf(
			"#%d\nTitle    : %s\nISBN     : %s\nDue date : %s\nOverdue  : %d day(s)\nFine est.: Rs. %d",
			i+1, loan.BookTitle, loan.ISBN, loan.DueDate.Format(dateDisplay), days, fine,
		))
	}
	return fmt.Sprintf(
		"This member currently has %d overdue book(s):\n\n%s\n\nPlease inform the member to return them as soon as possible.",
		len(overdue), strings.Join(lines, "\n\n"),
	)
}

func (s *service) renderFines(member *reporting.MemberSummary) string {
	if member.TotalFinePaid.IsZero() {
		return fmt.Sprintf("This member (%s) does not have any recorded past fines.", member.Member.Name)
	}
	return fmt.Sprintf(
		"This member (%s) has total recorded fines of Rs. %s. For an exact breakdown, please refer to the fines/transactions view.",
		member.Member.Name, member.TotalFinePaid.String(),
	)
}

func (s *service) renderSummary(member *reporting.MemberSummary) string {
	return fmt.Sprintf(
		"Member summary for %s (ID: %s):\n"+
			"• Current borrowed books: %d\n"+
			"• Total books ever borrowed: %d\n"+
			"• Overdue cases on record: %d\n"+
			"For detailed history of every transaction, please see the member summary screen used by staff.",
		member.Member.Name, member.Member.MemberCode,
		member.CurrentBorrowed, member.TotalBorrowed, member.OverdueBooks,
	)
}

func (s *service) renderHistory(member *reporting.MemberSummary) string {
	history := member.History
	if len(history) == 0 {
		return fmt.Sprintf("This member (%s) has no recorded borrowings in the system.", member.Member.Name)
	}
	if len(history) > historyLimit {
		history = history[:historyLimit]
	}
	lines := make([]string, 0, len(history))
	for i, loan := range history {
		returned := "Not yet returned"
		if loan.ReturnedDate != nil {
			returned = loan.ReturnedDate.Format(dateDisplay)
		}
		lines = append(lines, fmt.Sprintf(
			"#%d\nTitle      : %s\nISBN       : %s\nBorrowed on: %s\nReturned on: %s\nStatus     : %s",
			i+1, loan.BookTitle, loan.ISBN,
			loan.BorrowedDate.Format(dateDisplay), returned, loan.Status,
		))
	}
	return fmt.Sprintf(
		"Borrowing history for %s (ID: %s) – latest %d record(s):\n\n%s",
		member.Member.Name, member.Member.MemberCode, len(history), strings.Join(lines, "\n\n"),
	)
}

func (s *service) renderMembersWithFines(ctx context.Context) (string, error) {
	summaries, err := s.reports.MembersWithFines(ctx)
	if err != nil {
		return "", err
	}
	if len(summaries) == 0 {
		return "No members currently have any recorded fines in the system.", nil
	}
	lines := make([]string, 0, len(summaries))
	for i, entry := range summaries {
		memberID := "Not recorded"
		if entry.MemberCode != nil {
			memberID = *entry.MemberCode
		}
		lines = append(lines, fmt.Sprintf(
			"#%d\nName       : %s\nMember ID  : %s\nReturns    : %d with fines\nTotal fines: Rs. %s\nLast fine  : %s",
			i+1, entry.BorrowerName, memberID, entry.FinedReturns,
			entry.TotalFines.String(), entry.LatestReturn.Format(dateDisplay),
		))
	}
	return fmt.Sprintf(
		"These members have recorded fines in the system (top 50 by total fines):\n\n%s\n\n"+
			"Note: This list is based on recorded fine amounts from return transactions and does not track whether fines have later been paid.",
		strings.Join(lines, "\n\n"),
	), nil
}

func (s *service) renderAvailableBooks(ctx context.Context) (string, error) {
	books, err := s.reports.AvailableBooks(ctx, availableBooksLimit)
	if err != nil {
		return "", err
	}
	if len(books) == 0 {
		return "There are no books currently marked as available in the system.", nil
	}
	lines := make([]string, 0, len(books))
	for i, book := range books {
		shelf := book.ShelfLocation
		if shelf == "" {
			shelf = "Not specified"
		}
		lines = append(lines, fmt.Sprintf(
			"#%d\nTitle   : %s\nAuthor  : %s\nISBN    : %s\nCopies  : %d/%d copies\nShelf   : %s",
			i+1, book.Title, book.Author, book.ISBN,
			book.AvailableCopies, book.TotalCopies, shelf,
		))
	}
	return fmt.Sprintf(
		"Here is a sample of available books (up to %d):\n\n%s\n\nFor the full list, please use the main Books page.",
		availableBooksLimit, strings.Join(lines, "\n\n"),
	), nil
}

func (s *service) renderBorrowedAll(ctx context.Context) (string, error) {
	loans, err := s.reports.ActiveBorrowings(ctx)
	if err != nil {
		return "", err
	}
	if len(loans) == 0 {
		return "There are no active borrowed books in the system right now.", nil
	}
	if len(loans) > borrowedAllLimit {
		loans = loans[:borrowedAllLimit]
	}
	lines := make([]string, 0, len(loans))
	for i, loan := range loans {
		lines = append(lines, fmt.Sprintf(
			"#%d\nTitle    : %s\nISBN     : %s\nBorrower : %s%s\nDue date : %s",
			i+1, loan.BookTitle, loan.ISBN, loan.BorrowerName,
			memberTag(loan), loan.DueDate.Format(dateDisplay),
		))
	}
	return fmt.Sprintf(
		"Here are up to %d currently borrowed books and who borrowed them:\n\n%s",
		borrowedAllLimit, strings.Join(lines, "\n\n"),
	), nil
}

func (s *service) renderBorrowedOnDate(ctx context.Context, message string) (string, error) {
	day, ok := extractDate(message)
	if !ok {
		return `Please specify the date more clearly, for example: "What are the borrowed books on 15 Jan 2026" or "borrowed books on 2026-01-15".`, nil
	}
	loans, err := s.reports.BorrowedOnDate(ctx, day)
	if err != nil {
		return "", err
	}
	niceDate := day.Format(dateDisplay)
	if len(loans) == 0 {
		return fmt.Sprintf("No books were recorded as borrowed on %s.", niceDate), nil
	}
	lines := make([]string, 0, len(loans))
	for i, loan := range loans {
		lines = append(lines, fmt.Sprintf(
			"#%d\nTitle    : %s\nISBN     : %s\nBorrower : %s%s\nTime     : %s\nDue date : %s",
			i+1, loan.BookTitle, loan.ISBN, loan.BorrowerName, memberTag(loan),
			loan.BorrowedDate.Format(timeDisplay), loan.DueDate.Format(dateDisplay),
		))
	}
	return fmt.Sprintf("Books borrowed on %s:\n\n%s", niceDate, strings.Join(lines, "\n\n")), nil
}

func (s *service) renderReturnedOnDate(ctx context.Context, message string) (string, error) {
	day, ok := extractDate(message)
	if !ok {
		return `Please specify the date more clearly, for example: "What are the returned books on 15 Jan 2026" or "returned books on 2026-01-15".`, nil
	}
	loans, err := s.reports.ReturnedOnDate(ctx, day)
	if err != nil {
		return "", err
	}
	niceDate := day.Format(dateDisplay)
	if len(loans) == 0 {
		return fmt.Sprintf("No books were recorded as returned on %s.", niceDate), nil
	}
	lines := make([]string, 0, len(loans))
	for i, loan := range loans {
		fine := "None"
		if loan.FineAmount.IsPositive() {
			fine = "Rs. " + loan.FineAmount.String()
		}
		returnedAt := ""
		if loan.ReturnedDate != nil {
			returnedAt = loan.ReturnedDate.Format(timeDisplay)
		}
		lines = append(lines, fmt.Sprintf(
			"#%d\nTitle    : %s\nISBN     : %s\nBorrower : %s%s\nTime     : %s\nFine     : %s",
			i+1, loan.BookTitle, loan.ISBN, loan.BorrowerName, memberTag(loan),
			returnedAt, fine,
		))
	}
	return fmt.Sprintf("Books returned on %s:\n\n%s", niceDate, strings.Join(lines, "\n\n")), nil
}

func memberTag(loan models.Loan) string {
	if loan.MemberCode == nil {
		return ""
	}
	return fmt.Sprintf(" (Member ID: %s)", *loan.MemberCode)
}

func activeByDueDate(history []models.Loan) []models.Loan {
	var active []models.Loan
	for _, loan := range history {
		if loan.IsActive() {
			active = append(active, loan)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].DueDate.Before(active[j].DueDate)
	})
	return active
}
