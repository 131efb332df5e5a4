package api

import (
	"Atrium/internal/api/middleware"
	"Atrium/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.CORSMiddleware())
	logger.SetupGin(r)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"Code":    200,
				"Message": "pong",
				"Data":    nil,
			})
		})

		imGroup := apiGroup.Group("/im")
		{
			// WS 入口走查询串鉴权，握手后的动作全在长连接帧内
			imGroup.GET("", group.WsHandler.Connect)

			authGroup := imGroup.Group("")
			authGroup.Use(middleware.AuthMiddleware())
			{
				authGroup.POST("/send", group.ChatHandler.SendMessage)
				authGroup.POST("/read", group.ChatHandler.MarkRead)
				authGroup.POST("/delete", group.ChatHandler.DeleteMessage)
				authGroup.GET("/history", group.ChatHandler.GetChatHistory)
				authGroup.GET("/list", group.ChatHandler.GetConversationList)
			}
		}

		groupGroup := apiGroup.Group("/groups")
		groupGroup.Use(middleware.AuthMiddleware())
		{
			groupGroup.POST("", group.GroupHandler.CreateGroup)
			groupGroup.GET("", group.GroupHandler.ListGroups)
			groupGroup.GET("/:group_id", group.GroupHandler.GetGroup)
			groupGroup.GET("/:group_id/members", group.GroupHandler.ListMembers)
			groupGroup.POST("/:group_id/members", group.GroupHandler.AddMember)
			groupGroup.DELETE("/:group_id/members/:user_id", group.GroupHandler.RemoveMember)
		}

		presenceGroup := apiGroup.Group("/presence")
		presenceGroup.Use(middleware.AuthMiddleware())
		{
			presenceGroup.GET("/online", group.PresenceHandler.GetOnlineUsers)
			presenceGroup.GET("/online/:user_id", group.PresenceHandler.IsOnline)
			presenceGroup.GET("/call", group.PresenceHandler.GetCall)
		}

		mediaGroup := apiGroup.Group("/media")
		{
			mediaGroup.Use(middleware.AuthMiddleware())
			mediaGroup.POST("/upload-url", group.MediaHandler.GetUploadURL)
		}
	}

	return r
}
