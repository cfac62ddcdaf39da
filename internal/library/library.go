// A small library catalog, used to exercise the deserializer with
// constructors, setters, injected collaborators and nested collections.
package library

import (
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pasqal-io/graphdasse/deserialize/metadata"
)

// ----- Book

type Book struct {
	logger  *zap.Logger
	id      int
	title   string
	serie   *Serie
	reviews []any
	authors []ProjectBookCreation
}

// Create a book. The logger is a collaborator, it never comes from the input.
func NewBook(logger *zap.Logger, title string) (*Book, error) {
	if logger == nil {
		return nil, errors.New("a book needs a logger")
	}
	if strings.TrimSpace(title) == "" {
		return nil, errors.New("a book needs a title")
	}
	logger.Debug("Creating book", zap.String("title", title))
	return &Book{
		logger: logger,
		title:  title,
	}, nil
}

func (Book) DeserializationMetadata() metadata.Declaration {
	return metadata.Declaration{
		Constructor: NewBook,
		Params: []metadata.Param{
			{Name: "logger"},
			{Name: "title"},
		},
		Fields: []metadata.Field{
			{Name: "id", Setter: "SetID"},
			{Name: "serie", Setter: "SetSerie"},
			{Name: "reviews", Setter: "SetReviews", Elem: reflect.TypeOf(Review{})}, //nolint:exhaustruct
			{Name: "authors", Setter: "SetAuthors"},
		},
	}
}

func (b *Book) ID() int {
	return b.id
}

func (b *Book) SetID(id int) {
	b.id = id
}

func (b *Book) Title() string {
	return b.title
}

func (b *Book) Logger() *zap.Logger {
	return b.logger
}

func (b *Book) Serie() *Serie {
	return b.serie
}

func (b *Book) SetSerie(serie *Serie) {
	b.serie = serie
}

// The reviews, in input order.
func (b *Book) Reviews() []Review {
	result := make([]Review, 0, len(b.reviews))
	for _, entry := range b.reviews {
		if review, ok := entry.(Review); ok {
			result = append(result, review)
		}
	}
	return result
}

func (b *Book) SetReviews(reviews []any) error {
	for i, entry := range reviews {
		if _, ok := entry.(Review); !ok {
			return errors.Newf("entry %d is not a review", i)
		}
	}
	b.logger.Debug("Attaching reviews", zap.String("title", b.title), zap.Int("count", len(reviews)))
	b.reviews = reviews
	return nil
}

func (b *Book) Authors() []ProjectBookCreation {
	return b.authors
}

func (b *Book) SetAuthors(authors []ProjectBookCreation) {
	b.authors = authors
}

// ----- Serie

type Serie struct {
	ID   int    `json:"id"   yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ----- Review

type Review struct {
	ID        int       `json:"id"        yaml:"id"`
	Content   string    `json:"content"   yaml:"content"`
	Date      time.Time `json:"date"      yaml:"date"`
	Username  string    `json:"username"  yaml:"username"`
	Reference uuid.UUID `json:"reference" yaml:"reference"`
}

// ----- Author

type Author struct {
	firstname string
	lastname  string
}

func NewAuthor(firstname string, lastname string) Author {
	return Author{
		firstname: firstname,
		lastname:  lastname,
	}
}

func (Author) DeserializationMetadata() metadata.Declaration {
	return metadata.Declaration{
		Constructor: NewAuthor,
		Params: []metadata.Param{
			{Name: "firstname"},
			{Name: "lastname", Optional: true},
		},
	}
}

func (a Author) Firstname() string {
	return a.firstname
}

func (a Author) Lastname() string {
	return a.lastname
}

// ----- Job

type Job struct {
	Translation string `json:"translation" yaml:"translation"`
}

func (j *Job) Validate() error {
	if j.Translation == "" {
		return errors.New("a job needs a translation")
	}
	return nil
}

// ----- ProjectBookCreation

// The role an author had in the creation of a book.
type ProjectBookCreation struct {
	Job    Job    `json:"job"    yaml:"job"`
	Author Author `json:"author" yaml:"author"`
}
